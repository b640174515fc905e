// Package pipeline sequences the extraction stages and assembles the
// structured receipt. Scan failure is fatal; each field stage is
// independently fault-tolerant.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/receiptpilot/receipt-scanner/internal/entity"
	"github.com/receiptpilot/receipt-scanner/internal/extract"
)

// Scanner is the scan stage: file -> raw text + confidence.
type Scanner interface {
	Scan(ctx context.Context, path string) (entity.RawScan, error)
}

// Stage names, in run order.
type Stage string

const (
	StageScan     Stage = "scan"
	StageMerchant Stage = "merchant"
	StageDate     Stage = "date"
	StageTotal    Stage = "total"
	StageItems    Stage = "items"
	StageAssemble Stage = "assemble"
)

// Outcome of a completed stage.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"    // produced a value
	OutcomeEmpty Outcome = "empty" // ran fine, nothing found
	OutcomeError Outcome = "error" // stage failed (fatal only for scan)
)

// StageEvent is the structured observability record emitted per stage.
type StageEvent struct {
	Stage    Stage
	Outcome  Outcome
	Duration time.Duration
	Err      error
}

// StageObserver receives stage events; used by tests to assert on stage
// outcomes without parsing log output.
type StageObserver interface {
	StageCompleted(ev StageEvent)
}

type Pipeline struct {
	scanner  Scanner
	merchant *extract.MerchantExtractor
	log      *slog.Logger

	scanTimeout     time.Duration
	classifyTimeout time.Duration
	observer        StageObserver
}

type Option func(*Pipeline)

// WithScanTimeout bounds the scan stage. Zero means no explicit bound.
func WithScanTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.scanTimeout = d }
}

// WithClassifyTimeout bounds the merchant stage's external call.
func WithClassifyTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.classifyTimeout = d }
}

func WithObserver(obs StageObserver) Option {
	return func(p *Pipeline) { p.observer = obs }
}

func New(scanner Scanner, merchant *extract.MerchantExtractor, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		scanner:         scanner,
		merchant:        merchant,
		log:             logger,
		scanTimeout:     2 * time.Minute,
		classifyTimeout: 15 * time.Second,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes scan -> merchant -> date -> total -> items -> assemble for
// one document. The returned error is non-nil only when the scan stage
// failed; a receipt with some or all fields missing is still a success.
func (p *Pipeline) Run(ctx context.Context, path string) (*entity.ExtractedReceipt, error) {
	runStart := time.Now()

	scan, err := p.runScan(ctx, path)
	if err != nil {
		return nil, err
	}

	rec := &entity.ExtractedReceipt{
		Items:      []entity.LineItem{},
		RawText:    scan.Text,
		Confidence: scan.Confidence,
	}

	// merchant: the only other suspending stage; its external failure is
	// already absorbed inside the extractor.
	start := time.Now()
	mctx := ctx
	if p.classifyTimeout > 0 {
		var cancel context.CancelFunc
		mctx, cancel = context.WithTimeout(ctx, p.classifyTimeout)
		defer cancel()
	}
	if name := p.merchant.Extract(mctx, scan.Text); name != "" {
		rec.Merchant = &name
		p.emit(StageEvent{Stage: StageMerchant, Outcome: OutcomeOK, Duration: time.Since(start)})
	} else {
		p.emit(StageEvent{Stage: StageMerchant, Outcome: OutcomeEmpty, Duration: time.Since(start)})
	}

	start = time.Now()
	if date, ok := extract.Date(scan.Text); ok {
		rec.Date = &date
		p.emit(StageEvent{Stage: StageDate, Outcome: OutcomeOK, Duration: time.Since(start)})
	} else {
		p.emit(StageEvent{Stage: StageDate, Outcome: OutcomeEmpty, Duration: time.Since(start)})
	}

	start = time.Now()
	if total, ok := extract.Total(scan.Text); ok {
		rec.Total = &total
		p.emit(StageEvent{Stage: StageTotal, Outcome: OutcomeOK, Duration: time.Since(start)})
	} else {
		p.emit(StageEvent{Stage: StageTotal, Outcome: OutcomeEmpty, Duration: time.Since(start)})
	}

	start = time.Now()
	rec.Items = extract.Items(scan.Text)
	itemsOutcome := OutcomeOK
	if len(rec.Items) == 0 {
		itemsOutcome = OutcomeEmpty
	}
	p.emit(StageEvent{Stage: StageItems, Outcome: itemsOutcome, Duration: time.Since(start)})

	p.emit(StageEvent{Stage: StageAssemble, Outcome: OutcomeOK, Duration: time.Since(runStart)})
	return rec, nil
}

func (p *Pipeline) runScan(ctx context.Context, path string) (entity.RawScan, error) {
	start := time.Now()
	sctx := ctx
	if p.scanTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, p.scanTimeout)
		defer cancel()
	}
	scan, err := p.scanner.Scan(sctx, path)
	if err != nil {
		p.emit(StageEvent{Stage: StageScan, Outcome: OutcomeError, Duration: time.Since(start), Err: err})
		return entity.RawScan{}, err
	}
	p.emit(StageEvent{Stage: StageScan, Outcome: OutcomeOK, Duration: time.Since(start)})
	return scan, nil
}

func (p *Pipeline) emit(ev StageEvent) {
	attrs := []any{
		"stage", string(ev.Stage),
		"outcome", string(ev.Outcome),
		"duration_ms", ev.Duration.Milliseconds(),
	}
	if ev.Err != nil {
		attrs = append(attrs, "error", ev.Err)
		p.log.Error("pipeline stage failed", attrs...)
	} else {
		p.log.Info("pipeline stage done", attrs...)
	}
	if p.observer != nil {
		p.observer.StageCompleted(ev)
	}
}
