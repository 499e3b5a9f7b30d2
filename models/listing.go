package models

// Sentinels recorded when a field cannot be located on the page.
const (
	TitleNotFound       = "Title not found"
	CompanyNotFound     = "Company not found"
	LocationNotFound    = "Location not found"
	DescriptionNotFound = "Description not found"
	PostingTimeNotFound = "Posting time not found"
	WorkTypeNotFound    = "Work type not found"
	IndustryNotFound    = "Industry not found"
)

// ListingReference is one search-result card.
type ListingReference struct {
	ID         string `json:"job_id"`
	URL        string `json:"url"`
	PostedDate string `json:"posted_date"`
}

// ListingRecord is the extracted content of one listing page.
// JobID and URL are always set. A record whose page failed to load
// carries only those two plus Error.
type ListingRecord struct {
	JobID       string `json:"job_id"`
	URL         string `json:"url"`
	Title       string `json:"job_title,omitempty"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"job_location,omitempty"`
	Description string `json:"job_description,omitempty"`
	PostingTime string `json:"posting_time,omitempty"`
	WorkType    string `json:"job_work_type,omitempty"`
	Industry    string `json:"job_industry,omitempty"`
	Category    string `json:"job_type,omitempty"` // role category from the title
	Error       string `json:"error,omitempty"`
}

// Failed reports whether the record stands in for a page that never loaded.
func (r *ListingRecord) Failed() bool {
	return r.Error != ""
}

// FailedRecord builds the inline record used for a page that could not be loaded.
func FailedRecord(id, url string, err error) ListingRecord {
	msg := "page could not be loaded"
	if err != nil {
		msg = err.Error()
	}
	return ListingRecord{JobID: id, URL: url, Error: msg}
}
