package models

// CardsRequest is the payload for POST /api/v1/cards.
type CardsRequest struct {
	// SearchURL is the first results page to walk. Required.
	SearchURL string `json:"search_url" binding:"required,url"`

	// PostedDateLimit is a free-text age such as "1d ago". Cards at or beyond
	// this age end the walk. Empty disables the window.
	PostedDateLimit string `json:"posted_date_limit,omitempty" binding:"omitempty,max=64"`

	// Save writes the result to the output directory.
	// Default: the server's SEEKJOBS_SAVE_RESULTS setting.
	Save *bool `json:"save,omitempty"`
}

// JobsRequest is the payload for POST /api/v1/jobs.
type JobsRequest struct {
	// JobIDs are the listing ids to fetch, in response order. Required.
	JobIDs []string `json:"job_ids" binding:"required,min=1,max=200,dive,listing_id"`

	// DescriptionFormat controls how the description body is rendered.
	// Allowed: "text" (default), "markdown".
	DescriptionFormat string `json:"description_format,omitempty" binding:"omitempty,oneof=text markdown"`

	// Save writes the result to the output directory.
	Save *bool `json:"save,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *JobsRequest) Defaults() {
	if r.DescriptionFormat == "" {
		r.DescriptionFormat = "text"
	}
}

// WebhookRequest is the payload for POST /api/v1/jobs/webhook.
type WebhookRequest struct {
	JobIDs     []string `json:"job_ids" binding:"required,min=1,max=200,dive,listing_id"`
	WebhookURL string   `json:"webhook_url" binding:"required,url"`

	// WebhookSecret signs the payload with HMAC-SHA256 when set.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// ShouldSave resolves an optional save flag against the server default.
func ShouldSave(flag *bool, fallback bool) bool {
	if flag == nil {
		return fallback
	}
	return *flag
}
