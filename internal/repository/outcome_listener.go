package repository

import (
	"go.uber.org/zap"

	"github.com/amrit2244/tally-einvoice-bridge/internal/domain/entity"
)

// OutcomeListener mirrors per-row run outcomes into the cached invoice
// view as they happen, so the UI tracks progress mid-run.
type OutcomeListener struct {
	invoices *InvoiceRepository
	logger   *zap.Logger
}

// NewOutcomeListener creates an outcome listener
func NewOutcomeListener(invoices *InvoiceRepository, logger *zap.Logger) *OutcomeListener {
	return &OutcomeListener{
		invoices: invoices,
		logger:   logger,
	}
}

// RunStarted is a no-op
func (l *OutcomeListener) RunStarted(string, int) {}

// RowFinished updates the cached invoice with its terminal state
func (l *OutcomeListener) RowFinished(runID string, outcome entity.RowOutcome) {
	if outcome.MasterID == "" {
		return
	}
	var irn string
	if outcome.Result != nil {
		irn = outcome.Result.IRN
	}
	if err := l.invoices.UpdateOutcome(outcome.MasterID, outcome.VoucherNo, outcome.Status, outcome.Error, irn); err != nil {
		l.logger.Warn("Failed to mirror row outcome",
			zap.String("run_id", runID),
			zap.String("master_id", outcome.MasterID),
			zap.Error(err))
	}
}

// RunFinished is a no-op
func (l *OutcomeListener) RunFinished(*entity.RunSummary) {}
