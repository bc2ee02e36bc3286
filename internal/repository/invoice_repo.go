package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amrit2244/tally-einvoice-bridge/internal/domain/entity"
)

// InvoiceRepository caches fetched vouchers so the UI can show the
// pending set and past outcomes without hitting Tally every time.
// Tally remains the source of truth; this table is a mirror.
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

const upsertInvoiceQuery = `
	INSERT INTO invoices (
		master_id, voucher_no, voucher_date, party_name, party_gstin,
		place_of_supply, taxable_amount, cgst_amount, sgst_amount,
		igst_amount, total_amount, status, error, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(master_id) DO UPDATE SET
		voucher_no = excluded.voucher_no,
		voucher_date = excluded.voucher_date,
		party_name = excluded.party_name,
		party_gstin = excluded.party_gstin,
		place_of_supply = excluded.place_of_supply,
		taxable_amount = excluded.taxable_amount,
		cgst_amount = excluded.cgst_amount,
		sgst_amount = excluded.sgst_amount,
		igst_amount = excluded.igst_amount,
		total_amount = excluded.total_amount,
		updated_at = excluded.updated_at
	WHERE invoices.status != 'Generated'
`

// Upsert stores or refreshes one fetched invoice. A voucher already
// marked Generated keeps its status; re-fetching must not resurrect a
// submitted invoice as pending.
func (r *InvoiceRepository) Upsert(tx *sql.Tx, rec *entity.InvoiceRecord) error {
	status := rec.Status
	if status == "" {
		status = entity.StatusPending
	}

	args := []any{
		rec.MasterID, rec.VoucherNo, rec.Date, rec.PartyName, rec.PartyGSTIN,
		rec.PlaceOfSupply, rec.TaxableAmount, rec.CGSTAmount, rec.SGSTAmount,
		rec.IGSTAmount, rec.TotalAmount, status, rec.Error, time.Now(),
	}

	var err error
	if tx != nil {
		_, err = tx.Exec(upsertInvoiceQuery, args...)
	} else {
		_, err = r.db.Exec(upsertInvoiceQuery, args...)
	}
	if err != nil {
		r.logger.Error("Failed to upsert invoice", zap.Error(err), zap.String("master_id", rec.MasterID))
		return fmt.Errorf("failed to upsert invoice: %w", err)
	}
	return nil
}

// UpsertAll stores a fetched batch in one transaction
func (r *InvoiceRepository) UpsertAll(records []entity.InvoiceRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for i := range records {
		if err := r.Upsert(tx, &records[i]); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit invoice batch: %w", err)
	}
	return nil
}

// UpdateOutcome records the terminal state of one invoice after a run.
// Runs can process vouchers the fetch endpoint never cached, so an
// unknown master id inserts a row instead of updating nothing; losing
// the outcome would let the next run submit the voucher again.
func (r *InvoiceRepository) UpdateOutcome(masterID, voucherNo, status, errMsg, irn string) error {
	query := `
		INSERT INTO invoices (master_id, voucher_no, status, error, irn, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(master_id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			irn = excluded.irn,
			updated_at = excluded.updated_at
	`
	_, err := r.db.Exec(query, masterID, voucherNo, status, errMsg, irn, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record invoice outcome: %w", err)
	}
	return nil
}

// List returns cached invoices, optionally filtered by status
func (r *InvoiceRepository) List(status string) ([]*entity.InvoiceRecord, error) {
	query := `
		SELECT master_id, voucher_no, voucher_date, party_name, party_gstin,
		       place_of_supply, taxable_amount, cgst_amount, sgst_amount,
		       igst_amount, total_amount, status, error
		FROM invoices
	`
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY voucher_date DESC, voucher_no"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var records []*entity.InvoiceRecord
	for rows.Next() {
		rec := &entity.InvoiceRecord{}
		if err := rows.Scan(
			&rec.MasterID, &rec.VoucherNo, &rec.Date, &rec.PartyName,
			&rec.PartyGSTIN, &rec.PlaceOfSupply, &rec.TaxableAmount,
			&rec.CGSTAmount, &rec.SGSTAmount, &rec.IGSTAmount,
			&rec.TotalAmount, &rec.Status, &rec.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// StatusesByMasterID returns the cached status for each requested id.
// Ids never seen before are absent from the map. The pipeline uses
// this before a run so vouchers that already carry an IRN are skipped.
func (r *InvoiceRepository) StatusesByMasterID(masterIDs []string) (map[string]string, error) {
	statuses := make(map[string]string, len(masterIDs))
	if len(masterIDs) == 0 {
		return statuses, nil
	}

	query := "SELECT master_id, status FROM invoices WHERE master_id IN (?" +
		strings.Repeat(",?", len(masterIDs)-1) + ")"
	args := make([]any, len(masterIDs))
	for i, id := range masterIDs {
		args[i] = id
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("failed to scan invoice status: %w", err)
		}
		statuses[id] = status
	}
	return statuses, rows.Err()
}

// GetByMasterID returns one cached invoice, or nil when absent
func (r *InvoiceRepository) GetByMasterID(masterID string) (*entity.InvoiceRecord, error) {
	query := `
		SELECT master_id, voucher_no, voucher_date, party_name, party_gstin,
		       place_of_supply, taxable_amount, cgst_amount, sgst_amount,
		       igst_amount, total_amount, status, error
		FROM invoices
		WHERE master_id = ?
	`

	rec := &entity.InvoiceRecord{}
	err := r.db.QueryRow(query, masterID).Scan(
		&rec.MasterID, &rec.VoucherNo, &rec.Date, &rec.PartyName,
		&rec.PartyGSTIN, &rec.PlaceOfSupply, &rec.TaxableAmount,
		&rec.CGSTAmount, &rec.SGSTAmount, &rec.IGSTAmount,
		&rec.TotalAmount, &rec.Status, &rec.Error,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return rec, nil
}
