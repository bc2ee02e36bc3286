package workflow

// State represents a per-invoice state in the e-invoice submission lifecycle
type State string

const (
	// StatePending is the state of a freshly fetched voucher.
	StatePending State = "Pending"

	// StateProcessing is the state while the invoice is inside the
	// submission loop.
	StateProcessing State = "Processing"

	// StateGenerated means the IRP issued an IRN and Tally reflects it.
	StateGenerated State = "Generated"

	// StateFailed means mapping, submission or interpretation failed.
	StateFailed State = "Failed"

	// StateTallyUpdFailed means the IRN exists upstream but the voucher
	// write-back failed; the ledger does not yet reflect the IRN and the
	// operator has to reconcile by hand.
	StateTallyUpdFailed State = "TallyUpdFailed"
)

var validStates = map[State]bool{
	StatePending:        true,
	StateProcessing:     true,
	StateGenerated:      true,
	StateFailed:         true,
	StateTallyUpdFailed: true,
}

var terminalStates = map[State]bool{
	StateGenerated:      true,
	StateFailed:         true,
	StateTallyUpdFailed: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
