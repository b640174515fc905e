package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/receiptpilot/receipt-scanner/internal/entity"
	"github.com/receiptpilot/receipt-scanner/internal/repository"
)

// Processor runs the extraction pipeline for a stored upload and persists
// the result against its receipt row.
type Processor struct {
	Pipeline *Pipeline
	Receipts repository.ReceiptRepository
	Logger   *slog.Logger
}

func NewProcessor(p *Pipeline, receipts repository.ReceiptRepository, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Pipeline: p, Receipts: receipts, Logger: logger}
}

// Process runs the pipeline on path, validates the assembled receipt, and
// stores it under receiptID. Scan failure aborts before anything is written.
func (p *Processor) Process(ctx context.Context, receiptID uuid.UUID, path string) (*entity.ExtractedReceipt, error) {
	rec, err := p.Pipeline.Run(ctx, path)
	if err != nil {
		p.Logger.Error("processor.scan.failed", "receipt_id", receiptID, "error", err)
		return nil, err
	}

	if err := entity.ValidateExtraction(rec); err != nil {
		p.Logger.Error("processor.validate.failed", "receipt_id", receiptID, "error", err)
		return nil, fmt.Errorf("validate extraction: %w", err)
	}

	if err := p.Receipts.SaveExtraction(ctx, receiptID, rec); err != nil {
		p.Logger.Error("processor.save.failed", "receipt_id", receiptID, "error", err)
		return nil, fmt.Errorf("save extraction: %w", err)
	}

	p.Logger.Info("processor.ok",
		"receipt_id", receiptID,
		"merchant", strOrEmpty(rec.Merchant),
		"date", strOrEmpty(rec.Date),
		"has_total", rec.Total != nil,
		"items", len(rec.Items),
		"confidence", rec.Confidence,
	)
	return rec, nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
