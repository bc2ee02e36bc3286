package tally

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amrit2244/tally-einvoice-bridge/internal/domain/entity"
	"github.com/amrit2244/tally-einvoice-bridge/pkg/utils"
)

// The EINVOICEDETAILS error field has a bounded width in Tally.
const maxErrorLen = 500

// Writer pushes submission results back onto the source voucher. The
// write-back is best-effort: it is attempted for failed submissions too
// so the voucher visibly carries the failure reason instead of staying
// "Pending", and a transport failure here never changes the already
// computed submission result.
type Writer struct {
	client    *Client
	updatedBy string
	now       func() time.Time
	logger    *zap.Logger
}

// NewWriter creates a new reconciliation writer
func NewWriter(client *Client, updatedBy string, logger *zap.Logger) *Writer {
	return &Writer{
		client:    client,
		updatedBy: updatedBy,
		now:       time.Now,
		logger:    logger,
	}
}

// Update alters the voucher identified by masterID with the e-invoice
// outcome. Returns ok=false with a diagnostic message on any failure;
// it never returns an error because the caller records the message as
// an annotation rather than acting on it.
func (w *Writer) Update(ctx context.Context, masterID string, res *entity.SubmissionResult) (bool, string) {
	errMsg := utils.StripControlChars(res.ErrorMsg)
	if len(errMsg) > maxErrorLen {
		errMsg = errMsg[:maxErrorLen]
	}

	envelope, err := buildImportEnvelope(importVoucher{
		RemoteID: masterID,
		VchType:  "Sales",
		Action:   "Alter",
		MasterID: masterID,
		AlterID:  masterID,
		LedgerEntries: importLedgerEntries{
			EInvoiceDetails: einvoiceDetails{
				IRN:      res.IRN,
				AckNo:    res.AckNo,
				AckDate:  res.AckDate,
				Status:   res.Status,
				ErrorMsg: errMsg,
			},
		},
		UpdatedBy:  w.updatedBy,
		UpdateDate: TallyDate(w.now().UTC()),
	})
	if err != nil {
		return false, "failed to build update envelope: " + err.Error()
	}

	w.logger.Info("Updating voucher in tally",
		zap.String("master_id", masterID),
		zap.String("status", res.Status))

	body, err := w.client.Post(ctx, envelope)
	if err != nil {
		w.logger.Warn("Tally voucher update failed",
			zap.String("master_id", masterID), zap.Error(err))
		return false, err.Error()
	}

	if strings.Contains(string(body), "<LINEERROR>") {
		w.logger.Warn("Tally reported a line error during update",
			zap.String("master_id", masterID))
		return false, "tally reported an error during update"
	}

	return true, "update successful"
}
