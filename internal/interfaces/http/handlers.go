package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amrit2244/tally-einvoice-bridge/internal/credentials"
	"github.com/amrit2244/tally-einvoice-bridge/internal/domain/entity"
	"github.com/amrit2244/tally-einvoice-bridge/internal/tally"
	"github.com/amrit2244/tally-einvoice-bridge/internal/worker"
)

// VoucherGateway is the Tally side used by the fetch endpoint
type VoucherGateway interface {
	CheckConnection(ctx context.Context) error
	FetchVouchers(ctx context.Context, from, to time.Time) ([]byte, error)
}

// VoucherParser turns raw voucher XML into invoice records
type VoucherParser interface {
	Parse(data []byte) []entity.InvoiceRecord
}

// InvoiceStore is the cached invoice view
type InvoiceStore interface {
	UpsertAll(records []entity.InvoiceRecord) error
	List(status string) ([]*entity.InvoiceRecord, error)
}

// RunQueue accepts new pipeline runs
type RunQueue interface {
	Enqueue(from, to time.Time) (*entity.PipelineRun, error)
}

// RunStore reads persisted runs and their row outcomes
type RunStore interface {
	GetByID(id string) (*entity.PipelineRun, error)
	ListRecent(limit int) ([]*entity.PipelineRun, error)
	GetRows(runID string) ([]entity.RowOutcome, error)
}

// ReportWriter renders a run summary to a downloadable file
type ReportWriter interface {
	Write(summary *entity.RunSummary) (string, error)
}

// SessionResetter drops the cached IRP session, forcing the next run
// to authenticate with fresh credentials.
type SessionResetter interface {
	Reset()
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	tallyGW      VoucherGateway
	parser       VoucherParser
	invoices     InvoiceStore
	queue        RunQueue
	runs         RunStore
	reports      ReportWriter
	creds        credentials.Provider
	session      SessionResetter
	lookbackDays int
	logger       *zap.Logger
}

// NewHandlers creates a new Handlers instance. lookbackDays sets the
// date range used when a request names no dates.
func NewHandlers(
	tallyGW VoucherGateway,
	parser VoucherParser,
	invoices InvoiceStore,
	queue RunQueue,
	runs RunStore,
	reports ReportWriter,
	creds credentials.Provider,
	session SessionResetter,
	lookbackDays int,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		tallyGW:      tallyGW,
		parser:       parser,
		invoices:     invoices,
		queue:        queue,
		runs:         runs,
		reports:      reports,
		creds:        creds,
		session:      session,
		lookbackDays: lookbackDays,
		logger:       logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// DateRangeRequest selects vouchers by date, operator format
// DD-MM-YYYY. Omitting both dates selects the configured lookback
// window ending today.
type DateRangeRequest struct {
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
}

func (h *Handlers) dateRange(r DateRangeRequest) (from, to time.Time, err error) {
	if r.FromDate == "" && r.ToDate == "" {
		to = time.Now()
		from = to.AddDate(0, 0, -h.lookbackDays)
		return
	}
	if r.FromDate == "" || r.ToDate == "" {
		err = errors.New("provide both from_date and to_date, or neither for the default window")
		return
	}
	from, err = tally.ParseOperatorDate(r.FromDate)
	if err != nil {
		return
	}
	to, err = tally.ParseOperatorDate(r.ToDate)
	if err != nil {
		return
	}
	if to.Before(from) {
		err = errors.New("to_date is before from_date")
	}
	return
}

// bindDateRange reads an optional date range body. An absent or empty
// body selects the default window.
func bindDateRange(c *gin.Context, req *DateRangeRequest) error {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// HealthCheck reports service and Tally gateway health
func (h *Handlers) HealthCheck(c *gin.Context) {
	status := "ok"
	tallyStatus := "ok"

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if err := h.tallyGW.CheckConnection(ctx); err != nil {
		status = "degraded"
		tallyStatus = err.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"tally":     tallyStatus,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// FetchInvoices pulls sales vouchers from Tally for a date range and
// refreshes the cached invoice view.
func (h *Handlers) FetchInvoices(c *gin.Context) {
	var req DateRangeRequest
	if err := bindDateRange(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "dates must be DD-MM-YYYY strings"})
		return
	}
	from, to, err := h.dateRange(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: err.Error()})
		return
	}

	raw, err := h.tallyGW.FetchVouchers(c.Request.Context(), from, to)
	if err != nil {
		h.logger.Error("Voucher fetch failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, Response{Error: "could not reach Tally: " + err.Error()})
		return
	}

	records := h.parser.Parse(raw)
	if err := h.invoices.UpsertAll(records); err != nil {
		h.logger.Error("Failed to cache fetched invoices", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"fetched":  len(records),
		"invoices": records,
	}})
}

// ListInvoices returns the cached invoice view
func (h *Handlers) ListInvoices(c *gin.Context) {
	records, err := h.invoices.List(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// StartRun queues a pipeline run over a date range
func (h *Handlers) StartRun(c *gin.Context) {
	var req DateRangeRequest
	if err := bindDateRange(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "dates must be DD-MM-YYYY strings"})
		return
	}
	from, to, err := h.dateRange(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: err.Error()})
		return
	}

	run, err := h.queue.Enqueue(from, to)
	if err != nil {
		if errors.Is(err, worker.ErrRunInProgress) {
			c.JSON(http.StatusConflict, Response{Error: err.Error()})
			return
		}
		h.logger.Error("Failed to queue run", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, Response{Success: true, Data: run})
}

// ListRuns returns recent runs, newest first
func (h *Handlers) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.runs.ListRecent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: runs})
}

// GetRun returns one run with its row outcomes
func (h *Handlers) GetRun(c *gin.Context) {
	run, err := h.runs.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, Response{Error: "run not found"})
		return
	}

	rows, err := h.runs.GetRows(run.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"run":  run,
		"rows": rows,
	}})
}

// DownloadReport renders a finished run as an Excel workbook
func (h *Handlers) DownloadReport(c *gin.Context) {
	run, err := h.runs.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, Response{Error: "run not found"})
		return
	}
	if !run.Finished() {
		c.JSON(http.StatusConflict, Response{Error: "run has not finished yet"})
		return
	}

	rows, err := h.runs.GetRows(run.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}

	summary := &entity.RunSummary{
		RunID:       run.ID,
		Generated:   run.Generated,
		Failed:      run.Failed,
		Rows:        rows,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		StatusLine:  run.StatusLine,
		AuthFailure: run.Error,
	}

	path, err := h.reports.Write(summary)
	if err != nil {
		h.logger.Error("Failed to write run report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}
	c.FileAttachment(path, "run-"+run.ID+".xlsx")
}

// CredentialsRequest carries new IRP API credentials
type CredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateCredentials stores new IRP credentials and drops the cached
// session so the next run authenticates with them.
func (h *Handlers) UpdateCredentials(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "username and password are required"})
		return
	}

	if err := h.creds.Set(credentials.Credentials{Username: req.Username, Password: req.Password}); err != nil {
		h.logger.Error("Failed to store credentials", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}
	h.session.Reset()

	c.JSON(http.StatusOK, Response{Success: true})
}
