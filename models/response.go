package models

// CardsResponse is the response for POST /api/v1/cards.
type CardsResponse struct {
	Status        string             `json:"status"`
	JobCardCount  int                `json:"job_card_count"`
	ExecutionTime float64            `json:"execution_time"` // seconds
	Data          []ListingReference `json:"data"`
	OutputFile    string             `json:"output_file,omitempty"`
}

// JobsResponse is the response for POST /api/v1/jobs and GET /api/v1/jobs/:id.
type JobsResponse struct {
	Status      string          `json:"status"`
	JobCount    int             `json:"job_count"`
	ElapsedTime float64         `json:"elapsed_time"` // seconds
	Data        []ListingRecord `json:"data"`
	OutputFile  string          `json:"output_file,omitempty"`

	// CacheStatus is "hit" or "miss" when max_age was requested.
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is set when Status is "failed".
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorResponse is returned for request-level failures.
type ErrorResponse struct {
	Status string       `json:"status"`
	Error  *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status         string `json:"status"` // "healthy" or "degraded"
	Uptime         string `json:"uptime"`
	FetchMode      string `json:"fetch_mode"`
	ActiveSessions int    `json:"active_sessions"`
	MaxSessions    int    `json:"max_sessions"`
	Version        string `json:"version"`
	Timestamp      string `json:"timestamp"`
}
