package models

// SourceTypeGLPITicket is the only source type reports carry
const SourceTypeGLPITicket = "glpi_ticket"

// NoInformationSummary is used when neither the text nor the image stage produced output
const NoInformationSummary = "No information available."

// SummaryResult holds the intermediate summaries of a run. Empty means absent.
type SummaryResult struct {
	TextSummary  string `json:"text_summary"`
	ImageSummary string `json:"image_summary"`
}

// HasText reports whether a text summary was produced
func (s SummaryResult) HasText() bool {
	return s.TextSummary != ""
}

// HasImages reports whether an image summary was produced
func (s SummaryResult) HasImages() bool {
	return s.ImageSummary != ""
}

// SourceDescriptor identifies where a report's content came from
type SourceDescriptor struct {
	SourceID   string `json:"source_id"`
	SourceType string `json:"source_type"`
}

// Report is the input to PDF rendering
type Report struct {
	Title   string             `json:"title"`
	Summary string             `json:"summary"`
	Sources []SourceDescriptor `json:"sources"`
}
