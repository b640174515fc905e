// Package extract holds the field extractors: pure functions (plus the
// NER-backed merchant extractor) mapping raw OCR text to structured values
// through prioritized rule tables.
package extract

import (
	"regexp"
	"time"
)

// dateRule pairs a shape pattern with the layouts that normalize a match.
// Rules are tried in priority order; within a rule, occurrences are tried
// in text order and the first one that is a real calendar date wins.
type dateRule struct {
	re      *regexp.Regexp
	layouts []string
}

// Day-first convention throughout: "12/05/2023" is 12 May 2023.
var dateRules = []dateRule{
	{
		re:      regexp.MustCompile(`\b\d{2}[-/]\d{2}[-/]\d{4}\b`),
		layouts: []string{"02/01/2006", "02-01-2006"},
	},
	{
		re:      regexp.MustCompile(`\b\d{4}[-/]\d{2}[-/]\d{2}\b`),
		layouts: []string{"2006/01/02", "2006-01-02"},
	},
	{
		re:      regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b`),
		layouts: []string{"2/1/2006", "2-1-2006", "2/1/06", "2-1-06"},
	},
}

// Date scans text with the rule table above and returns the first match
// normalized to YYYY-MM-DD, or ok=false when no rule matches anywhere.
func Date(text string) (string, bool) {
	for _, rule := range dateRules {
		for _, m := range rule.re.FindAllString(text, -1) {
			for _, layout := range rule.layouts {
				if t, err := time.Parse(layout, m); err == nil {
					return t.Format("2006-01-02"), true
				}
			}
		}
	}
	return "", false
}
