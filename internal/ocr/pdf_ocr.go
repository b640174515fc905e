package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/receiptpilot/receipt-scanner/internal/entity"
)

// minEmbeddedTextBytes is the cutoff below which a PDF's embedded text layer
// is considered absent (a scan wrapped in a PDF) and the page raster path
// is taken instead.
const minEmbeddedTextBytes = 32

func (e *Extractor) scanPDF(ctx context.Context, path string) (result, error) {
	txt, pages, warns, err := e.pdfToText(ctx, path)
	if err == nil && len(strings.TrimSpace(txt)) >= minEmbeddedTextBytes {
		txt = cleanText(txt)
		return result{
			scan:   entity.RawScan{Text: txt, Confidence: blendConfidence(0, heuristicConfidence(txt))},
			pages:  pages,
			method: "pdf-text",
			warns:  warns,
		}, nil
	}
	if err != nil {
		warns = append(warns, fmt.Sprintf("pdftotext: %v", err))
	}

	txt, pages, ocrWarns, err := e.pdfToOCR(ctx, path)
	if err != nil {
		return result{}, err
	}
	txt = cleanText(txt)

	return result{
		scan:   entity.RawScan{Text: txt, Confidence: blendConfidence(0, heuristicConfidence(txt))},
		pages:  pages,
		method: "pdf-ocr",
		warns:  append(warns, ocrWarns...),
	}, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(text, "\f")
	return text, pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "rs-pp-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", rmErr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	var warns []string
	recognized := 0
	for i, img := range matches {
		txt, w, err := e.tesseractOCR(ctx, img)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		recognized++
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(txt)
		warns = append(warns, w...)
		e.progress(float64(i+1) / float64(len(matches)) * 100)
	}
	// a partial page failure is a warning; failing every page is an engine
	// failure and must abort the scan
	if recognized == 0 {
		return "", 0, warns, fmt.Errorf("tesseract failed on all %d pages", len(matches))
	}
	return b.String(), len(matches), warns, nil
}
