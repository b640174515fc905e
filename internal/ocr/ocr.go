// Package ocr turns receipt files (images and PDFs) into raw text plus a
// confidence score, shelling out to tesseract and the poppler utilities.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/receiptpilot/receipt-scanner/constants"
	"github.com/receiptpilot/receipt-scanner/internal/entity"
)

// ScanError is fatal: a file the engine could not decode, an unsupported
// extension, or an engine crash. Callers must not attempt field extraction
// after receiving one.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("ocr scan %q: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// ProgressFunc receives recognition progress in percent (0..100).
// Progress is observability only; it carries no result data.
type ProgressFunc func(pct float64)

type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"

	TesseractLang string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 300
	MaxPages      int // 0 = no limit

	PSM int // e.g., 6 is good for a uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	// MaxConcurrent caps concurrent engine invocations. Defaults to the
	// CPU count so burst uploads cannot exhaust the host.
	MaxConcurrent int

	OnProgress ProgressFunc
}

// Extractor implements the scan stage: file -> RawScan.
type Extractor struct {
	cfg    Config
	runner Runner
	sem    chan struct{}
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = runtime.NumCPU()
	}
	return &Extractor{
		cfg:    cfg,
		runner: execRunner{},
		sem:    make(chan struct{}, cfg.MaxConcurrent),
		logger: logger,
	}
}

// result carries the scan internals that only this package logs.
type result struct {
	scan   entity.RawScan
	pages  int
	method string // "pdf-text" | "pdf-ocr" | "image-ocr"
	warns  []string
}

// Scan picks a strategy based on file extension and returns the raw text
// plus a 0..100 confidence. Every failure is returned as a *ScanError.
func (e *Extractor) Scan(ctx context.Context, path string) (entity.RawScan, error) {
	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return entity.RawScan{}, &ScanError{Path: path, Err: ctx.Err()}
	}

	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting scan", "path", path, "ext", ext)
	e.progress(0)

	var res result
	var err error
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err = e.scanPDF(ctx, path)
	case constants.IMAGE:
		res, err = e.scanImage(ctx, path)
	default:
		err = fmt.Errorf("unsupported extension: %q", ext)
	}
	if err != nil {
		e.logger.Error("scan failed", "path", path, "ext", ext, "error", err)
		return entity.RawScan{}, &ScanError{Path: path, Err: err}
	}
	e.progress(100)

	e.logger.Info("scan ok",
		"path", path,
		"method", res.method,
		"pages", res.pages,
		"bytes", len(res.scan.Text),
		"confidence", res.scan.Confidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	for _, w := range res.warns {
		e.logger.Warn("scan warning", "path", path, "warning", w)
	}
	return res.scan, nil
}

func (e *Extractor) progress(pct float64) {
	if e.cfg.OnProgress != nil {
		e.cfg.OnProgress(pct)
	}
}

// blendConfidence weights the engine confidence higher when present.
// Both inputs and the output are on the 0..100 scale.
func blendConfidence(engine, heuristic float32) float32 {
	var conf float32
	if engine > 0 {
		conf = 0.7*engine + 0.3*heuristic
	} else {
		conf = heuristic
	}
	if conf > 100 {
		conf = 100
	}
	return conf
}

// cleanText normalizes line endings so downstream line-oriented extraction
// sees plain "\n" regardless of platform or engine quirks.
var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func cleanText(s string) string {
	return lineEndings.Replace(s)
}
