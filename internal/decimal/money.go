package decimal

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

var hundred = decimal.NewFromInt(100)

// ParseLoose parses amounts as they come out of extraction: surrounding
// spaces, thousands separators and a decimal comma are tolerated.
// Unparseable input yields zero.
func ParseLoose(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\'':
			return -1
		}
		return r
	}, s)
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			// 1.234,56 or 1,234.56: the last separator is the decimal one
			if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
				s = strings.ReplaceAll(s, ".", "")
				s = strings.Replace(s, ",", ".", 1)
			} else {
				s = strings.ReplaceAll(s, ",", "")
			}
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero
	}
	return d
}

// Round2 rounds to cents
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Mul multiplies two decimals, rounded to cents
func Mul(a, b decimal.Decimal) decimal.Decimal {
	return a.Mul(b).Round(2)
}

// Div divides a by b, rounded to cents. A zero divisor yields zero.
func Div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return Zero
	}
	return a.Div(b).Round(2)
}

// CalculateVAT computes amount * (rate/100) without rounding, so callers can
// accumulate several lines and round once.
func CalculateVAT(amount, ratePercent decimal.Decimal) decimal.Decimal {
	if ratePercent.IsZero() {
		return Zero
	}
	return amount.Mul(ratePercent).Div(hundred)
}

// Sum adds up values
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// Format2 renders a fixed 2-decimal string ("12.50")
func Format2(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Format4 renders a fixed 4-decimal string, used for unit prices and quantities
func Format4(d decimal.Decimal) string {
	return d.StringFixed(4)
}
