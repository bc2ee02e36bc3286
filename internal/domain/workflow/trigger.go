package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	// TriggerProcess enters the per-invoice submission loop.
	TriggerProcess Trigger = "PROCESS"

	// TriggerGenerate fires when the IRP issued an IRN and the Tally
	// write-back succeeded.
	TriggerGenerate Trigger = "GENERATE"

	// TriggerFail fires when mapping, submission or interpretation failed.
	TriggerFail Trigger = "FAIL"

	// TriggerDeferWriteback fires when the IRN was issued but the Tally
	// write-back failed.
	TriggerDeferWriteback Trigger = "DEFER_WRITEBACK"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
