package pipeline

import "github.com/amrit2244/tally-einvoice-bridge/internal/domain/entity"

// Listener receives progress notifications during a run. Callbacks
// fire on the run's goroutine; implementations must not block.
type Listener interface {
	RunStarted(runID string, total int)
	RowFinished(runID string, outcome entity.RowOutcome)
	RunFinished(summary *entity.RunSummary)
}

// NopListener discards all notifications
type NopListener struct{}

func (NopListener) RunStarted(string, int)                {}
func (NopListener) RowFinished(string, entity.RowOutcome) {}
func (NopListener) RunFinished(*entity.RunSummary)        {}

// MultiListener fans notifications out to several listeners
type MultiListener []Listener

func (m MultiListener) RunStarted(runID string, total int) {
	for _, l := range m {
		l.RunStarted(runID, total)
	}
}

func (m MultiListener) RowFinished(runID string, outcome entity.RowOutcome) {
	for _, l := range m {
		l.RowFinished(runID, outcome)
	}
}

func (m MultiListener) RunFinished(summary *entity.RunSummary) {
	for _, l := range m {
		l.RunFinished(summary)
	}
}
