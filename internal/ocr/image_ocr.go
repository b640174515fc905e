package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/receiptpilot/receipt-scanner/internal/entity"
)

func (e *Extractor) scanImage(ctx context.Context, path string) (result, error) {
	txt, warns, err := e.tesseractOCR(ctx, path)
	if err != nil {
		return result{}, err
	}
	txt = cleanText(txt)

	engineConf, confWarns, confErr := e.tesseractTSVConfidence(ctx, path)
	warns = append(warns, confWarns...)
	if confErr != nil {
		// confidence is best-effort; the text is already in hand
		warns = append(warns, confErr.Error())
		engineConf = 0
	}

	conf := blendConfidence(engineConf, heuristicConfidence(txt))
	return result{
		scan:   entity.RawScan{Text: txt, Confidence: conf},
		pages:  1,
		method: "image-ocr",
		warns:  warns,
	}, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil, nil
}

// tesseractTSVConfidence runs tesseract in TSV mode and returns the mean
// word confidence on the 0..100 scale, or 0 when no words were recognized.
func (e *Extractor) tesseractTSVConfidence(ctx context.Context, path string) (float32, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return 0, []string{string(errb)}, fmt.Errorf("tesseract tsv: %w", err)
	}

	lines := strings.Split(string(out), "\n")
	// conf is the second-to-last column; -1 marks non-word rows
	var sum, n float64
	for i, ln := range lines {
		if i == 0 || len(ln) == 0 {
			continue // skip header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[10]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, nil, nil
	}
	return float32(sum / n), nil, nil
}
