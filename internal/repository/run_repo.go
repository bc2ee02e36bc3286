package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/amrit2244/tally-einvoice-bridge/internal/domain/entity"
)

// RunRepository handles pipeline run database operations
type RunRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB, logger *zap.Logger) *RunRepository {
	return &RunRepository{
		db:     db,
		logger: logger,
	}
}

// CreateRun inserts a freshly queued run
func (r *RunRepository) CreateRun(run *entity.PipelineRun) error {
	query := `
		INSERT INTO pipeline_runs (
			id, from_date, to_date, status, created_at
		) VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, run.ID, run.FromDate, run.ToDate, run.Status, run.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create run", zap.Error(err))
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun records the terminal state of a run together with its row
// outcomes. The two writes share a transaction so a crash cannot leave
// rows without their run outcome.
func (r *RunRepository) FinishRun(run *entity.PipelineRun, summary *entity.RunSummary) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `
		UPDATE pipeline_runs
		SET status = ?, status_line = ?, generated = ?, failed = ?,
		    error = ?, started_at = ?, finished_at = ?
		WHERE id = ?
	`
	_, err = tx.Exec(query,
		run.Status, run.StatusLine, run.Generated, run.Failed,
		run.Error, run.StartedAt, run.FinishedAt, run.ID,
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to update run: %w", err)
	}

	if summary != nil {
		for _, row := range summary.Rows {
			if err := r.insertRow(tx, run.ID, row); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run outcome: %w", err)
	}
	return nil
}

func (r *RunRepository) insertRow(tx *sql.Tx, runID string, row entity.RowOutcome) error {
	query := `
		INSERT INTO run_rows (
			run_id, master_id, voucher_no, party_name, status, error,
			irn, ack_no, ack_date, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var irn, ackNo, ackDate string
	if row.Result != nil {
		irn = row.Result.IRN
		ackNo = row.Result.AckNo
		ackDate = row.Result.AckDate
	}

	_, err := tx.Exec(query,
		runID, row.MasterID, row.VoucherNo, row.PartyName, row.Status,
		row.Error, irn, ackNo, ackDate, row.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run row: %w", err)
	}
	return nil
}

// GetByID returns one run
func (r *RunRepository) GetByID(id string) (*entity.PipelineRun, error) {
	query := `
		SELECT id, from_date, to_date, status, status_line, generated,
		       failed, error, created_at, started_at, finished_at
		FROM pipeline_runs
		WHERE id = ?
	`

	run := &entity.PipelineRun{}
	var startedAt, finishedAt sql.NullTime
	err := r.db.QueryRow(query, id).Scan(
		&run.ID, &run.FromDate, &run.ToDate, &run.Status, &run.StatusLine,
		&run.Generated, &run.Failed, &run.Error, &run.CreatedAt,
		&startedAt, &finishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	run.StartedAt = startedAt.Time
	run.FinishedAt = finishedAt.Time
	return run, nil
}

// ListRecent returns the most recent runs, newest first
func (r *RunRepository) ListRecent(limit int) ([]*entity.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, from_date, to_date, status, status_line, generated,
		       failed, error, created_at, started_at, finished_at
		FROM pipeline_runs
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*entity.PipelineRun
	for rows.Next() {
		run := &entity.PipelineRun{}
		var startedAt, finishedAt sql.NullTime
		if err := rows.Scan(
			&run.ID, &run.FromDate, &run.ToDate, &run.Status, &run.StatusLine,
			&run.Generated, &run.Failed, &run.Error, &run.CreatedAt,
			&startedAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt = startedAt.Time
		run.FinishedAt = finishedAt.Time
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRows returns the row outcomes of one run in processing order
func (r *RunRepository) GetRows(runID string) ([]entity.RowOutcome, error) {
	query := `
		SELECT master_id, voucher_no, party_name, status, error,
		       irn, ack_no, ack_date, finished_at
		FROM run_rows
		WHERE run_id = ?
		ORDER BY id
	`

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run rows: %w", err)
	}
	defer rows.Close()

	var outcomes []entity.RowOutcome
	for rows.Next() {
		var row entity.RowOutcome
		var irn, ackNo, ackDate string
		var finishedAt time.Time
		if err := rows.Scan(
			&row.MasterID, &row.VoucherNo, &row.PartyName, &row.Status,
			&row.Error, &irn, &ackNo, &ackDate, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		row.FinishedAt = finishedAt
		if irn != "" || ackNo != "" || ackDate != "" {
			row.Result = &entity.SubmissionResult{
				Status:  row.Status,
				IRN:     irn,
				AckNo:   ackNo,
				AckDate: ackDate,
			}
		}
		outcomes = append(outcomes, row)
	}
	return outcomes, rows.Err()
}
