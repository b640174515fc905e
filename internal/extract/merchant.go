package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/receiptpilot/receipt-scanner/internal/ner"
)

// MerchantExtractor identifies the organization name from the text's first
// line. Primary path is the entity-classification service; when the call
// fails or returns no organization entity, the trimmed first line is used.
// A classifier failure never escapes this component.
type MerchantExtractor struct {
	classifier ner.Classifier
	log        *slog.Logger
}

func NewMerchantExtractor(classifier ner.Classifier, logger *slog.Logger) *MerchantExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &MerchantExtractor{classifier: classifier, log: logger}
}

// Extract returns the merchant name, or "" when the text has no first line.
func (m *MerchantExtractor) Extract(ctx context.Context, text string) string {
	line, _, _ := strings.Cut(text, "\n")
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ""
	}

	entities, err := m.classifier.Classify(ctx, line)
	if err != nil {
		m.log.Warn("entity classification failed, using first line", "error", err)
		return trimmed
	}

	// offsets are character positions into the submitted first line
	runes := []rune(line)
	for _, e := range entities {
		if e.EntityGroup != ner.GroupOrganization {
			continue
		}
		if e.Start < 0 || e.End > len(runes) || e.Start >= e.End {
			m.log.Warn("organization entity has invalid offsets, using first line",
				"start", e.Start, "end", e.End, "line_len", len(runes))
			break
		}
		return string(runes[e.Start:e.End])
	}
	return trimmed
}
