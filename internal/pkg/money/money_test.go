package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{name: "Brazilian thousands and decimal", input: "R$ 1.234,56", expected: 1234.56},
		{name: "international thousands and decimal", input: "$1,234.56", expected: 1234.56},
		{name: "Brazilian decimal only", input: "R$ 59,90", expected: 59.90},
		{name: "international decimal only", input: "$59.90", expected: 59.90},
		{name: "euro Brazilian style", input: "€ 2.500,00", expected: 2500.00},
		{name: "plain integer", input: "150", expected: 150},
		{name: "dot thousands without decimal", input: "R$ 1.234", expected: 1234},
		{name: "comma thousands without decimal", input: "$1,234", expected: 1234},
		{name: "surrounding label text", input: "Total: R$ 99,00 (via Pix)", expected: 99.00},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			value, ok := ParseAmount(tc.input)
			require.True(t, ok)
			assert.InDelta(t, tc.expected, value, 0.001)
		})
	}
}

func TestParseAmountNoNumber(t *testing.T) {
	for _, input := range []string{"", "free shipping", "R$"} {
		_, ok := ParseAmount(input)
		assert.False(t, ok, "input %q should not parse", input)
	}
}

func TestCurrencyFromSymbol(t *testing.T) {
	assert.Equal(t, CurrencyBRL, CurrencyFromSymbol("R$ 10,00"))
	assert.Equal(t, CurrencyUSD, CurrencyFromSymbol("$10.00"))
	assert.Equal(t, CurrencyEUR, CurrencyFromSymbol("€10,00"))
	assert.Equal(t, CurrencyBRL, CurrencyFromSymbol("10.00"))
}
