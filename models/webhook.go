package models

// WebhookAccepted is the immediate response for POST /api/v1/jobs/webhook.
type WebhookAccepted struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// DeliveryReport describes the outcome of one webhook POST.
// Status is "sent" or "error".
type DeliveryReport struct {
	Status          string `json:"status"`
	WebhookStatus   int    `json:"webhook_status,omitempty"`
	WebhookResponse string `json:"webhook_response,omitempty"`
	Message         string `json:"message,omitempty"`
}

// WebhookJob tracks one background fetch-and-deliver run.
type WebhookJob struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"` // "processing", "delivered", "delivery_failed"
	Total     int             `json:"total"`
	JobCount  int             `json:"job_count"`
	Delivery  *DeliveryReport `json:"delivery,omitempty"`
	CreatedAt int64           `json:"created_at"` // unix timestamp
}
