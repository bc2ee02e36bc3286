package repository

import (
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amrit2244/tally-einvoice-bridge/internal/domain/entity"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	require.NotEmpty(t, files)

	for _, name := range files {
		script, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		_, err = db.Exec(string(script))
		require.NoError(t, err, "migration %s", name)
	}
	return db
}

func TestRunRepositoryLifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewRunRepository(db, zap.NewNop())

	run := &entity.PipelineRun{
		ID:        "run-1",
		FromDate:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		ToDate:    time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		Status:    entity.RunStatusQueued,
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.CreateRun(run))

	got, err := repo.GetByID("run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entity.RunStatusQueued, got.Status)

	run.Status = entity.RunStatusFinished
	run.StatusLine = "Generated: 1, Failed/Skipped: 1"
	run.Generated = 1
	run.Failed = 1
	run.StartedAt = time.Now()
	run.FinishedAt = time.Now()

	summary := &entity.RunSummary{
		RunID: "run-1",
		Rows: []entity.RowOutcome{
			{
				MasterID:  "m1",
				VoucherNo: "INV-1",
				PartyName: "Buyer Traders",
				Status:    entity.StatusGenerated,
				Result: &entity.SubmissionResult{
					Status: entity.StatusGenerated,
					IRN:    "irn-1", AckNo: "112010", AckDate: "2026-08-30 11:00:00",
				},
				FinishedAt: time.Now(),
			},
			{
				MasterID:   "m2",
				VoucherNo:  "INV-2",
				Status:     entity.StatusFailed,
				Error:      "Code 2150: Duplicate IRN",
				FinishedAt: time.Now(),
			},
		},
	}
	require.NoError(t, repo.FinishRun(run, summary))

	got, err = repo.GetByID("run-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusFinished, got.Status)
	assert.Equal(t, "Generated: 1, Failed/Skipped: 1", got.StatusLine)
	assert.Equal(t, 1, got.Generated)
	assert.Equal(t, 1, got.Failed)

	rows, err := repo.GetRows("run-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "irn-1", rows[0].Result.IRN)
	assert.Nil(t, rows[1].Result)
	assert.Contains(t, rows[1].Error, "Duplicate IRN")
}

func TestRunRepositoryGetMissing(t *testing.T) {
	repo := NewRunRepository(openTestDB(t), zap.NewNop())

	got, err := repo.GetByID("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRunRepositoryListRecent(t *testing.T) {
	repo := NewRunRepository(openTestDB(t), zap.NewNop())

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.CreateRun(&entity.PipelineRun{
			ID:        id,
			FromDate:  base,
			ToDate:    base,
			Status:    entity.RunStatusQueued,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := repo.ListRecent(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}

func TestInvoiceRepositoryUpsertAndList(t *testing.T) {
	repo := NewInvoiceRepository(openTestDB(t), zap.NewNop())

	records := []entity.InvoiceRecord{
		{MasterID: "m1", VoucherNo: "INV-1", Date: "20260830", PartyName: "Buyer A", TotalAmount: 1180, TaxableAmount: 1000, CGSTAmount: 90, SGSTAmount: 90},
		{MasterID: "m2", VoucherNo: "INV-2", Date: "20260829", PartyName: "Buyer B", TotalAmount: 590},
	}
	require.NoError(t, repo.UpsertAll(records))

	all, err := repo.List("")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, entity.StatusPending, all[0].Status)

	pending, err := repo.List(entity.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestInvoiceRepositoryGeneratedNotResurrected(t *testing.T) {
	repo := NewInvoiceRepository(openTestDB(t), zap.NewNop())

	rec := entity.InvoiceRecord{MasterID: "m1", VoucherNo: "INV-1", TotalAmount: 100}
	require.NoError(t, repo.Upsert(nil, &rec))
	require.NoError(t, repo.UpdateOutcome("m1", "INV-1", entity.StatusGenerated, "", "irn-1"))

	// Re-fetching the same voucher must not flip it back to Pending
	refetched := entity.InvoiceRecord{MasterID: "m1", VoucherNo: "INV-1", TotalAmount: 100}
	require.NoError(t, repo.Upsert(nil, &refetched))

	got, err := repo.GetByMasterID("m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entity.StatusGenerated, got.Status)
}

func TestInvoiceRepositoryUpdateOutcome(t *testing.T) {
	repo := NewInvoiceRepository(openTestDB(t), zap.NewNop())

	rec := entity.InvoiceRecord{MasterID: "m1", VoucherNo: "INV-1"}
	require.NoError(t, repo.Upsert(nil, &rec))
	require.NoError(t, repo.UpdateOutcome("m1", "INV-1", entity.StatusFailed, "Code 2150: Duplicate IRN", ""))

	got, err := repo.GetByMasterID("m1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "2150")
}

func TestInvoiceRepositoryStatusesByMasterID(t *testing.T) {
	repo := NewInvoiceRepository(openTestDB(t), zap.NewNop())

	require.NoError(t, repo.UpsertAll([]entity.InvoiceRecord{
		{MasterID: "m1", VoucherNo: "INV-1"},
		{MasterID: "m2", VoucherNo: "INV-2"},
	}))
	require.NoError(t, repo.UpdateOutcome("m1", "INV-1", entity.StatusGenerated, "", "irn-1"))

	statuses, err := repo.StatusesByMasterID([]string{"m1", "m2", "never-seen"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusGenerated, statuses["m1"])
	assert.Equal(t, entity.StatusPending, statuses["m2"])
	_, known := statuses["never-seen"]
	assert.False(t, known)

	empty, err := repo.StatusesByMasterID(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInvoiceRepositoryOutcomeWithoutPriorFetch(t *testing.T) {
	repo := NewInvoiceRepository(openTestDB(t), zap.NewNop())

	// A run can process a voucher the fetch endpoint never cached; its
	// outcome must still land so the next run sees the IRN.
	require.NoError(t, repo.UpdateOutcome("m9", "INV-9", entity.StatusGenerated, "", "irn-9"))

	statuses, err := repo.StatusesByMasterID([]string{"m9"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusGenerated, statuses["m9"])

	got, err := repo.GetByMasterID("m9")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "INV-9", got.VoucherNo)
}
