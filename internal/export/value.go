// Package export renders invoices into user defined flat (delimited) and XML
// formats driven by templates, field mappings and lookup tables.
package export

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is the textual form of date-like values
const TimeLayout = "2006-01-02 15:04:05"

// Kind tags the variant held by a Value
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindTime
)

// Value is a resolved field value
type Value struct {
	kind Kind
	text string
	num  decimal.Decimal
	tm   time.Time
}

// Null is the value of unknown or absent fields
func Null() Value { return Value{} }

// Text wraps a string
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number wraps a decimal
func Number(d decimal.Decimal) Value { return Value{kind: KindNumber, num: d} }

// Time wraps a timestamp; the zero time is Null
func Time(t time.Time) Value {
	if t.IsZero() {
		return Null()
	}
	return Value{kind: KindTime, tm: t}
}

// Kind returns the variant tag
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v holds nothing
func (v Value) IsNull() bool { return v.kind == KindNull }

// Format renders the value for output: null is empty, numbers have two
// decimals, times use TimeLayout.
func (v Value) Format() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return v.num.StringFixed(2)
	case KindTime:
		return v.tm.Format(TimeLayout)
	default:
		return ""
	}
}

// Key renders the value as a lookup key. Unlike Format, numbers keep their
// natural precision, so a rate of 20 keys as "20" and 5.5 as "5.5".
func (v Value) Key() string {
	if v.kind == KindNumber {
		return v.num.String()
	}
	return v.Format()
}
