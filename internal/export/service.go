// Package export produces spreadsheet exports of job results.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/pulmoscan/pulmoscan/internal/store"
)

// Service is a small façade over the store that renders a job's predictions
// as an XLSX workbook.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

func NewService(st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, logger: logger}
}

// JobXLSX returns an XLSX workbook (as bytes) with one row per prediction
// of the given job.
func (s *Service) JobXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error) {
	start := time.Now()

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	preds, err := s.store.ListPredictions(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Predictions"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// NewFile seeds a default sheet; the workbook should only carry ours.
	_ = f.DeleteSheet("Sheet1")

	headers := []string{
		"Filename",
		"Predicted Class",
		"Confidence",
		"From Cache",
		"Processing Time (ms)",
		"Image Hash",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, p := range preds {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, p.ImageFilename)
		write(2, p.PredictedClass)
		write(3, p.Confidence)
		write(4, p.FromCache)
		write(5, p.ProcessingTimeMS)
		write(6, p.ImageHash)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}

	s.logger.Info("export.xlsx", "job_id", job.ID, "rows", len(preds),
		"duration_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}
