package entity

import (
	"math"
	"time"

	"github.com/amrit2244/tally-einvoice-bridge/pkg/xmltree"
)

// InvoiceRecord is one Tally sales voucher normalized for e-invoice
// submission. MasterID is the reconciliation key used to alter the
// voucher back in Tally; RawData keeps the parsed voucher element so
// the schema mapper can resolve buyer and line-item details without
// refetching.
type InvoiceRecord struct {
	MasterID      string  `json:"master_id"`
	VoucherNo     string  `json:"voucher_no"`
	Date          string  `json:"date"` // Tally native YYYYMMDD
	PartyName     string  `json:"party_name"`
	PartyGSTIN    string  `json:"party_gstin"`
	PlaceOfSupply string  `json:"place_of_supply"` // state code, e.g. "29"
	TaxableAmount float64 `json:"taxable_amount"`
	CGSTAmount    float64 `json:"cgst_amount"`
	SGSTAmount    float64 `json:"sgst_amount"`
	IGSTAmount    float64 `json:"igst_amount"`
	TotalAmount   float64 `json:"total_amount"`
	Status        string  `json:"status"`
	Error         string  `json:"error,omitempty"`

	RawData *xmltree.Element `json:"-"`
}

// HasIdentity reports whether the record carries enough identity to act
// on. Vouchers with neither a voucher number nor a party name are
// dropped at the parser boundary.
func (r *InvoiceRecord) HasIdentity() bool {
	return r.VoucherNo != "" || r.PartyName != ""
}

// AmountsConsistent reports whether the invoice total matches the sum
// of its taxable value and tax buckets within rounding tolerance.
// Violations are tolerated at runtime but surfaced by tests.
func (r *InvoiceRecord) AmountsConsistent() bool {
	sum := r.TaxableAmount + r.CGSTAmount + r.SGSTAmount + r.IGSTAmount
	return math.Abs(r.TotalAmount-sum) < 0.01
}

// SubmissionResult is the outcome of one IRN generation attempt.
// Immutable once constructed; consumed exactly once by the
// reconciliation write-back.
type SubmissionResult struct {
	Status   string `json:"status"` // StatusGenerated or StatusFailed
	IRN      string `json:"irn,omitempty"`
	AckNo    string `json:"ack_no,omitempty"`
	AckDate  string `json:"ack_date,omitempty"`
	QRCode   string `json:"qr_code,omitempty"`
	ErrorMsg string `json:"error_msg,omitempty"`
}

// Generated reports whether the IRP issued an IRN for this attempt.
func (s *SubmissionResult) Generated() bool {
	return s.Status == StatusGenerated
}

// RowOutcome records the terminal state of one invoice within a run,
// including the write-back annotation when Tally could not be updated.
type RowOutcome struct {
	MasterID   string            `json:"master_id"`
	VoucherNo  string            `json:"voucher_no"`
	PartyName  string            `json:"party_name"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	Result     *SubmissionResult `json:"result,omitempty"`
	FinishedAt time.Time         `json:"finished_at"`
}

// RunSummary aggregates one pipeline run over a selected invoice set.
type RunSummary struct {
	RunID       string       `json:"run_id"`
	Generated   int          `json:"generated"`
	Failed      int          `json:"failed"`
	Rows        []RowOutcome `json:"rows"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	StatusLine  string       `json:"status_line"`
	AuthFailure string       `json:"auth_failure,omitempty"`
}
