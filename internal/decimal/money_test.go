package decimal_test

import (
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rezonia/facturx-engine/internal/decimal"
)

func TestParseLoose(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"12.50", "12.5"},
		{"12,50", "12.5"},
		{" 1 234,56 ", "1234.56"},
		{"1.234,56", "1234.56"},
		{"1,234.56", "1234.56"},
		{"", "0"},
		{"abc", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := decimal.ParseLoose(tt.in)
			assert.True(t, got.Equal(dec.RequireFromString(tt.expected)),
				"ParseLoose(%q) = %s, want %s", tt.in, got, tt.expected)
		})
	}
}

func TestRound2(t *testing.T) {
	assert.True(t, decimal.Round2(dec.RequireFromString("0.01815")).Equal(dec.RequireFromString("0.02")))
	assert.True(t, decimal.Round2(dec.RequireFromString("4.125")).Equal(dec.RequireFromString("4.13")))
	assert.True(t, decimal.Round2(dec.RequireFromString("-4.125")).Equal(dec.RequireFromString("-4.13")))
}

func TestMul(t *testing.T) {
	// 3 x 33.333 unit price gives a 99.999 line rounded to 100.00
	result := decimal.Mul(dec.NewFromInt(3), dec.RequireFromString("33.333"))
	assert.True(t, result.Equal(dec.NewFromInt(100)), "got %s", result)
}

func TestDiv(t *testing.T) {
	result := decimal.Div(dec.NewFromInt(10), dec.NewFromInt(3))
	assert.True(t, result.Equal(dec.RequireFromString("3.33")))

	// Division by zero returns zero
	result = decimal.Div(dec.NewFromInt(10), dec.Zero)
	assert.True(t, result.IsZero())
}

func TestCalculateVAT(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		rate     string
		expected string
	}{
		{"20% of 20", "20", "20", "4"},
		{"10% of 5", "5", "10", "0.5"},
		{"5.5% of 0.33 is not rounded", "0.33", "5.5", "0.01815"},
		{"0% rate", "1000", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := decimal.CalculateVAT(dec.RequireFromString(tt.amount), dec.RequireFromString(tt.rate))
			assert.True(t, result.Equal(dec.RequireFromString(tt.expected)),
				"got %s, want %s", result.String(), tt.expected)
		})
	}
}

func TestSum(t *testing.T) {
	values := []dec.Decimal{
		dec.RequireFromString("12.50"),
		dec.RequireFromString("0.33"),
		dec.RequireFromString("-2.83"),
	}
	assert.True(t, decimal.Sum(values).Equal(dec.NewFromInt(10)))
	assert.True(t, decimal.Sum(nil).IsZero())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "12.50", decimal.Format2(dec.RequireFromString("12.5")))
	assert.Equal(t, "0.00", decimal.Format2(dec.Zero))
	assert.Equal(t, "2.0000", decimal.Format4(dec.NewFromInt(2)))
	assert.Equal(t, "10.1235", decimal.Format4(dec.RequireFromString("10.12345")))
}
