package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// amountRe is the two-decimal amount shape shared by the total and items
// extractors. Comma is accepted as a decimal separator.
var amountRe = regexp.MustCompile(`\d+[.,]\d{2}`)

// totalRules is evaluated in priority order, first match wins:
//  1. "total" immediately followed by an optional currency symbol and amount
//  2. a bare currency-symbol-prefixed amount anywhere
//  3. "total" anywhere in the same line as an amount, not necessarily adjacent
var totalRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)total[\s:]*[$€£]?\s*\d+[.,]\d{2}`),
	regexp.MustCompile(`[$€£]\s*\d+[.,]\d{2}`),
	regexp.MustCompile(`(?i)\btotal\b.*?\d+[.,]\d{2}`),
}

// Total returns the receipt total parsed from the first winning rule's
// match, or ok=false when no rule matches.
func Total(text string) (float64, bool) {
	for _, re := range totalRules {
		m := re.FindString(text)
		if m == "" {
			continue
		}
		num := amountRe.FindString(m)
		if num == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.Replace(num, ",", ".", 1), 64)
		if err != nil {
			continue
		}
		return v, true
	}
	return 0, false
}
