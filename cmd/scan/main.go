// Command scan runs the extraction pipeline on a single receipt file and
// prints the structured result as JSON. No database is involved.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/receiptpilot/receipt-scanner/internal/common"
	"github.com/receiptpilot/receipt-scanner/internal/extract"
	"github.com/receiptpilot/receipt-scanner/internal/ner"
	"github.com/receiptpilot/receipt-scanner/internal/ocr"
	"github.com/receiptpilot/receipt-scanner/internal/pipeline"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "scan <receipt-file>")
		os.Exit(2)
	}
	path := os.Args[1]

	cfg := common.LoadConfig()

	scanner := ocr.NewExtractor(ocr.Config{
		Tesseract:     cfg.OCR.Tesseract,
		Pdftotext:     cfg.OCR.Pdftotext,
		Pdftoppm:      cfg.OCR.Pdftoppm,
		TesseractLang: cfg.OCR.TesseractLang,
		TessdataDir:   cfg.OCR.TessdataDir,
		DPI:           cfg.OCR.DPI,
		MaxPages:      cfg.OCR.MaxPages,
		OnProgress: func(pct float64) {
			fmt.Fprintf(os.Stderr, "scan progress: %.0f%%\n", pct)
		},
	}, logger)

	classifier := ner.NewClient(ner.Config{
		BaseURL: cfg.NER.BaseURL,
		Model:   cfg.NER.Model,
		APIKey:  cfg.NER.APIKey,
		Timeout: cfg.NER.Timeout,
	}, logger)

	merchant := extract.NewMerchantExtractor(classifier, logger)
	pipe := pipeline.New(scanner, merchant, logger,
		pipeline.WithScanTimeout(cfg.OCR.Timeout),
		pipeline.WithClassifyTimeout(cfg.NER.Timeout),
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OCR.Timeout+cfg.NER.Timeout)
	defer cancel()

	rec, err := pipe.Run(ctx, path)
	if err != nil {
		logger.Error("extraction failed", "path", path, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
}
