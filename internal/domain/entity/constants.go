package entity

// Status constants for InvoiceRecord and SubmissionResult
const (
	StatusPending        = "Pending"
	StatusProcessing     = "Processing"
	StatusGenerated      = "Generated"
	StatusFailed         = "Failed"
	StatusTallyUpdFailed = "TallyUpdFailed"
)

// Run status constants
const (
	RunStatusQueued   = "QUEUED"
	RunStatusRunning  = "RUNNING"
	RunStatusFinished = "FINISHED"
	RunStatusAborted  = "ABORTED"
)
