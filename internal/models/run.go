package models

import "time"

// PipelineState is the stage a pipeline run is in
type PipelineState string

const (
	StateFetching          PipelineState = "fetching"
	StateSummarizingText   PipelineState = "summarizing_text"
	StateSummarizingImages PipelineState = "summarizing_images"
	StateCombining         PipelineState = "combining"
	StateCleaning          PipelineState = "cleaning"
	StateRendering         PipelineState = "rendering"
	StateUploading         PipelineState = "uploading"
	StateDone              PipelineState = "done"
	StateFailed            PipelineState = "failed"
)

// RunResult describes the outcome of one pipeline run. It is never persisted.
type RunResult struct {
	RunID     string        `json:"run_id"`
	TicketID  int           `json:"ticket_id"`
	State     PipelineState `json:"state"`
	// FailedAt is the stage that was active when the run failed
	FailedAt  PipelineState `json:"failed_at,omitempty"`
	ReportKey string        `json:"report_key,omitempty"`
	ReportURL string        `json:"report_url,omitempty"`
	Err       error         `json:"-"`
	Duration  time.Duration `json:"duration"`
}

// Succeeded reports whether a report was uploaded
func (r RunResult) Succeeded() bool {
	return r.State == StateDone
}
