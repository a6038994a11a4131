// Package money parses localized price text scraped from storefront pages.
package money

import (
	"strconv"
	"strings"
)

// ISO currency codes inferred from on-page symbols.
const (
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
	CurrencyBRL = "BRL"
)

// ParseAmount extracts a numeric amount from price text such as
// "R$ 1.234,56" or "$1,234.56". Brazilian format uses the comma as the
// decimal separator and the dot for thousands; international format is the
// reverse. The separator appearing last is the decimal separator.
// Returns 0 and false when no number can be extracted.
func ParseAmount(text string) (float64, bool) {
	cleaned := extractNumeric(text)
	if cleaned == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// Brazilian: dots are thousands separators, comma is decimal
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			// International: commas are thousands separators
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		// Comma only. Two or fewer trailing digits means a decimal comma
		// ("59,90"); exactly three means a thousands group ("1,234").
		if len(cleaned)-lastComma-1 <= 2 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastDot >= 0:
		// Dot only. A dot followed by exactly three digits and preceded by
		// more digit groups is a Brazilian thousands separator ("1.234").
		if strings.Count(cleaned, ".") > 1 || len(cleaned)-lastDot-1 == 3 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// CurrencyFromSymbol infers an ISO currency code from price text.
// R$ must be checked before the bare dollar sign it contains.
func CurrencyFromSymbol(text string) string {
	switch {
	case strings.Contains(text, "R$"):
		return CurrencyBRL
	case strings.Contains(text, "€"):
		return CurrencyEUR
	case strings.Contains(text, "$"):
		return CurrencyUSD
	default:
		return CurrencyBRL
	}
}

// extractNumeric strips everything except digits and separators, keeping
// only the first contiguous numeric run.
func extractNumeric(text string) string {
	var b strings.Builder
	started := false
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
			started = true
		} else if started {
			break
		}
	}
	return strings.Trim(b.String(), ".,")
}
