package extract

import (
	"math"
	"strconv"
	"strings"

	"github.com/receiptpilot/receipt-scanner/internal/entity"
)

// Items walks the text line by line and returns the parsed line items in
// source order. A line is skipped when it mentions total/subtotal, when its
// trimmed length is under 5 characters, or when it carries no two-decimal
// amount. The rightmost amount on a line is taken as the price (a trailing
// amount is the line total, not a quantity or unit price); stripping all
// amounts and trimming yields the name, which may legitimately be empty.
func Items(text string) []entity.LineItem {
	items := make([]entity.LineItem, 0)
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "total") || strings.Contains(lower, "subtotal") {
			continue
		}
		if len(strings.TrimSpace(line)) < 5 {
			continue
		}

		amounts := amountRe.FindAllString(line, -1)
		if len(amounts) == 0 {
			continue
		}
		last := amounts[len(amounts)-1]
		price, err := strconv.ParseFloat(strings.Replace(last, ",", ".", 1), 64)
		if err != nil {
			continue
		}

		name := strings.TrimSpace(amountRe.ReplaceAllString(line, ""))
		items = append(items, entity.LineItem{Name: name, Price: round2(price)})
	}
	return items
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
