// Package enrich talks to the external bibliographic metadata service
// and converts its TEI responses into structured header and reference
// metadata. Service unavailability is an expected, non-fatal outcome
// modeled as a first-class result state, never an error.
package enrich

// Status is the tri-state outcome of an enrichment attempt.
type Status string

const (
	// StatusNotAttempted means no enrichment call was made.
	StatusNotAttempted Status = "not_attempted"
	// StatusUnavailable means the service was unreachable, timed out
	// or returned a malformed response.
	StatusUnavailable Status = "unavailable"
	// StatusPresent means the service answered; fields may still be
	// empty if the document yielded nothing.
	StatusPresent Status = "present"
)

// Header is the bibliographic front matter of a document.
type Header struct {
	Title              string   `json:"title,omitempty"`
	Authors            []string `json:"authors,omitempty"`
	DOI                string   `json:"doi,omitempty"`
	Venue              string   `json:"venue,omitempty"`
	Publisher          string   `json:"publisher,omitempty"`
	PublicationDate    string   `json:"publication_date,omitempty"`
	PublicationYear    string   `json:"publication_year,omitempty"`
	Volume             string   `json:"volume,omitempty"`
	StartPage          string   `json:"start_page,omitempty"`
	EndPage            string   `json:"end_page,omitempty"`
	ConferenceLocation string   `json:"conference_location,omitempty"`
	Abstract           string   `json:"abstract,omitempty"`
}

// Reference is one parsed bibliography entry, in document order.
type Reference struct {
	ID      string   `json:"ref_id"`
	Title   string   `json:"title,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Source  string   `json:"source,omitempty"`
	Volume  string   `json:"volume,omitempty"`
	Issue   string   `json:"issue,omitempty"`
	Pages   string   `json:"pages,omitempty"`
	Year    string   `json:"year,omitempty"`
	RawText string   `json:"raw_text,omitempty"`
}

// Result is what an enrichment attempt produced. Header and References
// are only meaningful when Status is StatusPresent.
type Result struct {
	Status     Status
	Header     *Header
	References []Reference
}

// Unavailable is the degraded result used when the service could not
// deliver metadata.
func Unavailable() Result {
	return Result{Status: StatusUnavailable}
}

// NotAttempted is the result used when enrichment was skipped entirely.
func NotAttempted() Result {
	return Result{Status: StatusNotAttempted}
}
