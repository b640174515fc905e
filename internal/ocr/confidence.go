package ocr

import (
	"regexp"
	"strings"
)

var (
	reDateish = regexp.MustCompile(`\b\d{1,4}[-/]\d{1,2}[-/]\d{1,4}\b`)
	reCurr    = regexp.MustCompile(`\b(usd|eur|gbp|cad|aud|inr|jpy)\b|[$£€]`)
	reAmount  = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})\b|\b\d+\.\d{2}\b`)
)

func hasDatePattern(s string) bool     { return reDateish.MatchString(s) }
func hasCurrencyPattern(s string) bool { return reCurr.MatchString(s) }
func hasAmountPattern(s string) bool   { return reAmount.MatchString(s) }

// heuristicConfidence scores decoded text on the 0..100 scale from common
// receipt artifacts (date-ish, currency-ish, amount-ish substrings).
// It is a coarse signal used when no engine confidence is available, and
// blended in when one is.
func heuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(20) // base
	if hasDatePattern(txtL) {
		score += 20
	}
	if hasCurrencyPattern(txtL) {
		score += 15
	}
	if hasAmountPattern(txtL) {
		score += 15
	}
	if len(txt) > 120 {
		score += 10
	} // enough content
	if score > 100 {
		score = 100
	}
	return score
}
