package scraper

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		price    string
		currency string
		found    bool
	}{
		{name: "dollar with thousands separator", input: "$1,234.56", price: "1234.56", currency: "USD", found: true},
		{name: "euro", input: "€45.00", price: "45.00", currency: "EUR", found: true},
		{name: "pound", input: "£19.99", price: "19.99", currency: "GBP", found: true},
		{name: "rupee prefix", input: "Rs. 2,499", price: "2499", currency: "INR", found: true},
		{name: "code suffix", input: "49.95 USD", price: "49.95", currency: "USD", found: true},
		{name: "price label", input: "Price: 89.99", price: "89.99", currency: "USD", found: true},
		{name: "surrounded by text", input: "Now only $12.50 while stocks last", price: "12.50", currency: "USD", found: true},
		{name: "no price", input: "N/A", found: false},
		{name: "empty", input: "", found: false},
		{name: "zero rejected", input: "$0.00", found: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			price, currency, found := ParsePrice(tc.input)
			require.Equal(t, tc.found, found)
			if !tc.found {
				return
			}
			expected := decimal.RequireFromString(tc.price)
			require.True(t, price.Equal(expected), "got %s, want %s", price, expected)
			require.Equal(t, tc.currency, currency)
		})
	}
}

func TestParseAmount(t *testing.T) {
	testCases := []struct {
		input string
		want  string
		ok    bool
	}{
		{input: "1,234.56", want: "1234.56", ok: true},
		{input: "45", want: "45", ok: true},
		{input: "0.00", ok: false},
		{input: "-5.00", ok: false},
		{input: "abc", ok: false},
	}

	for _, tc := range testCases {
		amount, ok := ParseAmount(tc.input)
		require.Equal(t, tc.ok, ok, "input %q", tc.input)
		if tc.ok {
			require.True(t, amount.Equal(decimal.RequireFromString(tc.want)))
		}
	}
}

func TestDetectCurrency(t *testing.T) {
	require.Equal(t, "EUR", DetectCurrency("ab €12 cd"))
	require.Equal(t, "GBP", DetectCurrency("£9.99"))
	require.Equal(t, "INR", DetectCurrency("Rs 500"))
	require.Equal(t, "USD", DetectCurrency("just a number 42"))
}
