package entity

import "time"

// PipelineRun is one queued or executed submission run over a date
// range. Generated and Failed mirror the summary counters once the run
// finishes.
type PipelineRun struct {
	ID         string    `json:"id"`
	FromDate   time.Time `json:"from_date"`
	ToDate     time.Time `json:"to_date"`
	Status     string    `json:"status"`
	StatusLine string    `json:"status_line,omitempty"`
	Generated  int       `json:"generated"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Finished reports whether the run reached a terminal status
func (r *PipelineRun) Finished() bool {
	return r.Status == RunStatusFinished || r.Status == RunStatusAborted
}
