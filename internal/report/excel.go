// Package report renders run outcomes into operator-facing files.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/amrit2244/tally-einvoice-bridge/internal/domain/entity"
)

const sheetName = "Run Report"

var headerRow = []string{
	"Voucher No", "Party", "Master ID", "Status", "IRN", "Ack No", "Ack Date", "Error",
}

// ExcelWriter writes per-run reports as .xlsx workbooks
type ExcelWriter struct {
	outputDir string
	logger    *zap.Logger
}

// NewExcelWriter creates an Excel report writer
func NewExcelWriter(outputDir string, logger *zap.Logger) *ExcelWriter {
	return &ExcelWriter{
		outputDir: outputDir,
		logger:    logger,
	}
}

// Write renders one run summary to disk and returns the file path
func (w *ExcelWriter) Write(summary *entity.RunSummary) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		w.logger.Warn("Failed to remove default sheet", zap.Error(err))
	}

	w.setCell(f, "A1", "Run ID")
	w.setCell(f, "B1", summary.RunID)
	w.setCell(f, "A2", "Started")
	w.setCell(f, "B2", summary.StartedAt.Format("2006-01-02 15:04:05"))
	w.setCell(f, "A3", "Finished")
	w.setCell(f, "B3", summary.FinishedAt.Format("2006-01-02 15:04:05"))
	w.setCell(f, "A4", "Result")
	w.setCell(f, "B4", summary.StatusLine)
	if summary.AuthFailure != "" {
		w.setCell(f, "A5", "Auth failure")
		w.setCell(f, "B5", summary.AuthFailure)
	}

	const tableStart = 7
	for col, title := range headerRow {
		cell, _ := excelize.CoordinatesToCellName(col+1, tableStart)
		w.setCell(f, cell, title)
	}

	for i, row := range summary.Rows {
		values := []string{
			row.VoucherNo, row.PartyName, row.MasterID, row.Status,
			"", "", "", row.Error,
		}
		if row.Result != nil {
			values[4] = row.Result.IRN
			values[5] = row.Result.AckNo
			values[6] = row.Result.AckDate
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, tableStart+1+i)
			w.setCell(f, cell, v)
		}
	}

	path := filepath.Join(w.outputDir, fmt.Sprintf("run-%s.xlsx", summary.RunID))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	w.logger.Info("Run report written",
		zap.String("run_id", summary.RunID),
		zap.String("path", path))
	return path, nil
}

// setCell sets a cell value, logging rather than failing on error
func (w *ExcelWriter) setCell(f *excelize.File, cell, value string) {
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		w.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
