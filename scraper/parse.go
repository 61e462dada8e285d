package scraper

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// currencyTokens maps currency symbols and literal codes to ISO codes. The
// surrounding context text is scanned in this order; first hit wins.
var currencyTokens = []struct {
	token string
	code  string
}{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
	{"Rs", "INR"},
	{"USD", "USD"},
	{"EUR", "EUR"},
	{"GBP", "GBP"},
	{"JPY", "JPY"},
	{"INR", "INR"},
}

// textPricePatterns are tried in order against free text: currency-symbol
// prefixed, currency-code suffixed, label prefixed, then bare numeric.
var textPricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`[\$€£¥₹]\s*(\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?)\s*(?:USD|EUR|GBP|JPY|INR|Rs)\b`),
	regexp.MustCompile(`(?i)price[:\s]*[\$€£¥₹]?\s*(\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?)`),
}

// ParseAmount converts a raw numeric fragment ("1,234.56") into a positive
// decimal. Returns false for anything unparsable or non-positive.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return decimal.Decimal{}, false
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil || !amount.IsPositive() {
		return decimal.Decimal{}, false
	}
	return amount, true
}

// DetectCurrency infers a currency code from context text, defaulting to USD.
func DetectCurrency(text string) string {
	for _, entry := range currencyTokens {
		if strings.Contains(text, entry.token) {
			return entry.code
		}
	}
	return "USD"
}

// ParsePrice scans free text for a price and infers the currency from the
// same text. Absence of a match is a normal outcome, not an error.
func ParsePrice(text string) (decimal.Decimal, string, bool) {
	for _, pattern := range textPricePatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		amount, ok := ParseAmount(match[1])
		if !ok {
			continue
		}
		return amount, DetectCurrency(text), true
	}
	return decimal.Decimal{}, "", false
}
