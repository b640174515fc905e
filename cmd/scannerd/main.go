package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/receiptpilot/receipt-scanner/internal/common"
	"github.com/receiptpilot/receipt-scanner/internal/export"
	"github.com/receiptpilot/receipt-scanner/internal/extract"
	"github.com/receiptpilot/receipt-scanner/internal/ner"
	"github.com/receiptpilot/receipt-scanner/internal/ocr"
	"github.com/receiptpilot/receipt-scanner/internal/pipeline"
	"github.com/receiptpilot/receipt-scanner/internal/repository"
	"github.com/receiptpilot/receipt-scanner/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)

	if err := db.HealthCheck(ctx, cfg.Database.DialTimeout); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database ready")

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
	exporter := export.NewService(receiptsRepo, logger)

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.New(cfg.Server.UploadDir, receiptsRepo, proc, exporter, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	logger.Info("stopped")
}
