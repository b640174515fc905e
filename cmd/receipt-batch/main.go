// Command receipt-batch ingests a directory of receipt files, runs the
// extraction pipeline over them with a bounded worker pool, and writes an
// XLSX summary of the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/receiptpilot/receipt-scanner/constants"
	"github.com/receiptpilot/receipt-scanner/internal/async"
	"github.com/receiptpilot/receipt-scanner/internal/common"
	"github.com/receiptpilot/receipt-scanner/internal/entity"
	"github.com/receiptpilot/receipt-scanner/internal/export"
	"github.com/receiptpilot/receipt-scanner/internal/extract"
	"github.com/receiptpilot/receipt-scanner/internal/ner"
	"github.com/receiptpilot/receipt-scanner/internal/ocr"
	"github.com/receiptpilot/receipt-scanner/internal/pipeline"
	"github.com/receiptpilot/receipt-scanner/internal/repository"
)

func main() {
	var (
		inmem   = flag.Bool("inmem", false, "use an in-memory SQLite database")
		dir     = flag.String("dir", "", "directory to process receipts from (required)")
		out     = flag.String("out", "", "output XLSX file path (defaults to <dir>/../receipts.xlsx)")
		workers = flag.Int("workers", 4, "concurrent extraction workers")
	)
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "Error: -dir is required")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "receipts.xlsx")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := common.LoadConfig()

	dsn := cfg.Database.DSN
	if *inmem {
		dsn = ":memory:"
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "Error: set DB_URL or pass -inmem")
		os.Exit(1)
	}

	db, err := repository.Open(ctx, repository.Config{DSN: dsn}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	receiptsRepo := repository.NewReceiptRepository(db, logger)

	scanner := ocr.NewExtractor(ocr.Config{
		Tesseract:     cfg.OCR.Tesseract,
		Pdftotext:     cfg.OCR.Pdftotext,
		Pdftoppm:      cfg.OCR.Pdftoppm,
		TesseractLang: cfg.OCR.TesseractLang,
		TessdataDir:   cfg.OCR.TessdataDir,
		DPI:           cfg.OCR.DPI,
		MaxPages:      cfg.OCR.MaxPages,
		MaxConcurrent: cfg.OCR.MaxConcurrent,
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
	proc := pipeline.NewProcessor(pipe, receiptsRepo, logger)

	queue := async.NewProcessorQueue(proc, logger, async.WithWorkers(*workers))

	// Ingest: register every supported file in the directory, then enqueue.
	enqueued := 0
	skipped := 0
	err = filepath.WalkDir(*dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if constants.MapExtToFormat(filepath.Ext(path)) == "" {
			skipped++
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rec := &entity.Receipt{
			ID:         uuid.New(),
			Filename:   d.Name(),
			Path:       path,
			MIMEType:   "",
			SizeBytes:  info.Size(),
			UploadDate: time.Now().UTC(),
		}
		if err := receiptsRepo.Create(ctx, rec); err != nil {
			return err
		}
		if err := queue.Enqueue(ctx, async.Job{
			ReceiptID:   rec.ID,
			Path:        path,
			SubmittedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		enqueued++
		return nil
	})
	if err != nil {
		logger.Error("failed to ingest directory", "dir", *dir, "error", err)
		os.Exit(1)
	}

	// Drain the queue before exporting.
	drainCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	queue.Shutdown(drainCtx)
	cancel()

	exporter := export.NewService(receiptsRepo, logger)
	data, err := exporter.ExportReceiptsXLSX(ctx, nil, nil)
	if err != nil {
		logger.Error("failed to export receipts", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch complete", "enqueued", enqueued, "skipped", skipped, "output", *out)
	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files processed: %d\n", enqueued)
	fmt.Printf("- Files skipped: %d\n", skipped)
	fmt.Printf("- Output: %s\n", *out)
}
