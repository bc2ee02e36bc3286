package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amrit2244/tally-einvoice-bridge/internal/domain/entity"
	"github.com/amrit2244/tally-einvoice-bridge/internal/domain/workflow"
	"github.com/amrit2244/tally-einvoice-bridge/internal/schema"
)

// VoucherSource fetches raw voucher XML from the accounting system
type VoucherSource interface {
	FetchVouchers(ctx context.Context, from, to time.Time) ([]byte, error)
}

// VoucherParser turns raw voucher XML into invoice records
type VoucherParser interface {
	Parse(data []byte) []entity.InvoiceRecord
}

// DocumentMapper maps one invoice record to the IRP invoice document
type DocumentMapper interface {
	Map(rec *entity.InvoiceRecord) (*schema.Document, error)
}

// Gateway is the IRP side of the pipeline. SubmitInvoice never returns
// an error; failures come back as parseable failure bodies.
type Gateway interface {
	Authenticate(ctx context.Context) error
	SubmitInvoice(ctx context.Context, invoiceJSON []byte) string
}

// ResponseInterpreter classifies raw IRP response bodies
type ResponseInterpreter interface {
	Interpret(body string) entity.SubmissionResult
}

// ReconciliationWriter writes a submission result back into the
// accounting system. ok is false when the voucher could not be altered.
type ReconciliationWriter interface {
	Update(ctx context.Context, masterID string, res *entity.SubmissionResult) (ok bool, detail string)
}

// StatusSource reports the last recorded status per master id. Tally
// exports carry no IRN state, so without this lookup a re-run over the
// same dates would submit every voucher again. A nil source treats all
// fetched vouchers as pending.
type StatusSource interface {
	StatusesByMasterID(masterIDs []string) (map[string]string, error)
}

// Orchestrator drives the end-to-end run: fetch, parse, filter,
// authenticate once, then submit and reconcile each invoice in order.
type Orchestrator struct {
	source      VoucherSource
	parser      VoucherParser
	mapper      DocumentMapper
	gateway     Gateway
	interpreter ResponseInterpreter
	writer      ReconciliationWriter
	statuses    StatusSource
	listener    Listener

	now    func() time.Time
	logger *zap.Logger
}

// NewOrchestrator creates a pipeline orchestrator
func NewOrchestrator(
	source VoucherSource,
	parser VoucherParser,
	mapper DocumentMapper,
	gateway Gateway,
	interpreter ResponseInterpreter,
	writer ReconciliationWriter,
	statuses StatusSource,
	listener Listener,
	logger *zap.Logger,
) *Orchestrator {
	if listener == nil {
		listener = NopListener{}
	}
	return &Orchestrator{
		source:      source,
		parser:      parser,
		mapper:      mapper,
		gateway:     gateway,
		interpreter: interpreter,
		writer:      writer,
		statuses:    statuses,
		listener:    listener,
		now:         time.Now,
		logger:      logger,
	}
}

// Run executes one pipeline run over the vouchers dated within
// [from, to]. Pass an empty runID to have one assigned. It returns an
// error only when the run could not start at all: fetch failure or
// authentication failure. Once the per-invoice loop begins every
// outcome lands in the summary instead.
func (o *Orchestrator) Run(ctx context.Context, runID string, from, to time.Time) (*entity.RunSummary, error) {
	if runID == "" {
		runID = uuid.New().String()
	}
	summary := &entity.RunSummary{
		RunID:     runID,
		StartedAt: o.now(),
	}
	log := o.logger.With(zap.String("run_id", summary.RunID))

	raw, err := o.source.FetchVouchers(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetching vouchers: %w", err)
	}

	records := o.parser.Parse(raw)
	o.mergeKnownStatuses(records, log)
	pending := o.filter(records, summary, log)

	log.Info("Run starting",
		zap.Int("fetched", len(records)),
		zap.Int("pending", len(pending)),
		zap.Int("pre_skipped", summary.Failed))

	if len(pending) > 0 {
		// One authentication up front. When the IRP rejects the login
		// every invoice would fail the same way, so the run aborts
		// before touching any voucher.
		if err := o.gateway.Authenticate(ctx); err != nil {
			summary.AuthFailure = err.Error()
			o.finish(summary)
			return summary, err
		}
	}

	o.listener.RunStarted(summary.RunID, len(pending))

	for i := range pending {
		if err := ctx.Err(); err != nil {
			log.Warn("Run cancelled", zap.Int("remaining", len(pending)-i))
			break
		}
		outcome := o.processOne(ctx, &pending[i], log)
		o.record(summary, outcome)
		o.listener.RowFinished(summary.RunID, outcome)
	}

	o.finish(summary)
	log.Info("Run finished", zap.String("result", summary.StatusLine))
	return summary, nil
}

// mergeKnownStatuses overlays cached terminal statuses onto freshly
// parsed records. The parser marks everything pending; only the cache
// remembers which vouchers already carry an IRN, and those must never
// reach the gateway again.
func (o *Orchestrator) mergeKnownStatuses(records []entity.InvoiceRecord, log *zap.Logger) {
	if o.statuses == nil || len(records) == 0 {
		return
	}
	ids := make([]string, 0, len(records))
	for i := range records {
		if records[i].MasterID != "" {
			ids = append(ids, records[i].MasterID)
		}
	}
	known, err := o.statuses.StatusesByMasterID(ids)
	if err != nil {
		log.Warn("Could not load cached invoice statuses, treating all vouchers as pending", zap.Error(err))
		return
	}
	for i := range records {
		if known[records[i].MasterID] == entity.StatusGenerated {
			records[i].Status = entity.StatusGenerated
		}
	}
}

// filter drops records the loop must not process: vouchers that
// already carry an IRN are skipped silently, and vouchers without a
// MasterID cannot be written back so they fail up front.
func (o *Orchestrator) filter(records []entity.InvoiceRecord, summary *entity.RunSummary, log *zap.Logger) []entity.InvoiceRecord {
	pending := make([]entity.InvoiceRecord, 0, len(records))
	for i := range records {
		rec := &records[i]
		if rec.Status == entity.StatusGenerated {
			log.Debug("Skipping voucher that already has an IRN", zap.String("voucher_no", rec.VoucherNo))
			continue
		}
		if rec.MasterID == "" {
			o.record(summary, entity.RowOutcome{
				VoucherNo:  rec.VoucherNo,
				PartyName:  rec.PartyName,
				Status:     entity.StatusFailed,
				Error:      "voucher has no master id, cannot reconcile result back to Tally",
				FinishedAt: o.now(),
			})
			continue
		}
		pending = append(pending, records[i])
	}
	return pending
}

// processOne runs one invoice through its lifecycle and returns the
// terminal outcome. The write-back happens for failures too so the
// voucher in Tally carries the rejection reason.
func (o *Orchestrator) processOne(ctx context.Context, rec *entity.InvoiceRecord, log *zap.Logger) entity.RowOutcome {
	machine := workflow.NewInvoiceLifecycle()
	_ = machine.Fire(ctx, workflow.TriggerProcess)

	log = log.With(zap.String("voucher_no", rec.VoucherNo), zap.String("master_id", rec.MasterID))

	res := o.submit(ctx, rec, log)

	writeOK, detail := o.writer.Update(ctx, rec.MasterID, &res)

	switch {
	case res.Generated() && writeOK:
		_ = machine.Fire(ctx, workflow.TriggerGenerate)
	case res.Generated() && !writeOK:
		_ = machine.Fire(ctx, workflow.TriggerDeferWriteback)
		res.Status = entity.StatusTallyUpdFailed
		res.ErrorMsg = "IRN generated but Tally update failed: " + detail
		log.Error("Voucher write-back failed after IRN generation", zap.String("detail", detail))
	default:
		_ = machine.Fire(ctx, workflow.TriggerFail)
		if !writeOK {
			log.Warn("Could not record failure on voucher", zap.String("detail", detail))
		}
	}

	return entity.RowOutcome{
		MasterID:   rec.MasterID,
		VoucherNo:  rec.VoucherNo,
		PartyName:  rec.PartyName,
		Status:     machine.State().String(),
		Error:      res.ErrorMsg,
		Result:     &res,
		FinishedAt: o.now(),
	}
}

// submit maps, validates and posts one invoice, classifying whatever
// comes back. Mapping and validation problems become failed results
// without touching the network.
func (o *Orchestrator) submit(ctx context.Context, rec *entity.InvoiceRecord, log *zap.Logger) entity.SubmissionResult {
	doc, err := o.mapper.Map(rec)
	if err != nil {
		log.Warn("Voucher could not be mapped", zap.Error(err))
		return entity.SubmissionResult{Status: entity.StatusFailed, ErrorMsg: err.Error()}
	}
	if err := schema.Validate(doc); err != nil {
		log.Warn("Mapped document failed validation", zap.Error(err))
		return entity.SubmissionResult{Status: entity.StatusFailed, ErrorMsg: err.Error()}
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return entity.SubmissionResult{Status: entity.StatusFailed, ErrorMsg: "encoding invoice document: " + err.Error()}
	}

	body := o.gateway.SubmitInvoice(ctx, payload)
	res := o.interpreter.Interpret(body)
	if res.Generated() {
		log.Info("IRN generated", zap.String("irn", res.IRN))
	} else {
		log.Warn("IRN generation failed", zap.String("error", res.ErrorMsg))
	}
	return res
}

func (o *Orchestrator) record(summary *entity.RunSummary, outcome entity.RowOutcome) {
	summary.Rows = append(summary.Rows, outcome)
	if outcome.Status == entity.StatusGenerated {
		summary.Generated++
	} else {
		summary.Failed++
	}
}

func (o *Orchestrator) finish(summary *entity.RunSummary) {
	summary.FinishedAt = o.now()
	summary.StatusLine = fmt.Sprintf("Generated: %d, Failed/Skipped: %d", summary.Generated, summary.Failed)
	o.listener.RunFinished(summary)
}
