package export

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LookupEntry is one key to value transcoding pair
type LookupEntry struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// LookupTable is a named, ordered transcoding table
type LookupTable struct {
	Name    string        `json:"name" yaml:"name"`
	Entries []LookupEntry `json:"entries" yaml:"entries"`
}

// Get returns the value of the first entry whose key equals key, ignoring
// case and surrounding whitespace.
func (t *LookupTable) Get(key string) (string, bool) {
	key = strings.TrimSpace(key)
	for _, e := range t.Entries {
		if strings.EqualFold(strings.TrimSpace(e.Key), key) {
			return e.Value, true
		}
	}
	return "", false
}

// GetNumber returns the value of the first entry whose key parses as a
// number equal to n, so "20", "20.0" and "20.00" all match a rate of 20.
func (t *LookupTable) GetNumber(n decimal.Decimal) (string, bool) {
	for _, e := range t.Entries {
		k, err := decimal.NewFromString(strings.TrimSpace(e.Key))
		if err == nil && k.Equal(n) {
			return e.Value, true
		}
	}
	return "", false
}

// LookupTables is the set of tables available to an export
type LookupTables []LookupTable

// Find returns the first table named name (case-insensitive)
func (ts LookupTables) Find(name string) *LookupTable {
	for i := range ts {
		if strings.EqualFold(ts[i].Name, name) {
			return &ts[i]
		}
	}
	return nil
}

// Lookup transcodes key through the named table. A missing table or entry
// reports false.
func (ts LookupTables) Lookup(table, key string) (string, bool) {
	return ts.LookupValue(table, Text(key))
}

// LookupValue transcodes a resolved value through the named table. The raw
// key is tried first; numbers then fall back to numeric equality.
func (ts LookupTables) LookupValue(table string, v Value) (string, bool) {
	t := ts.Find(table)
	if t == nil {
		return "", false
	}
	if out, ok := t.Get(v.Key()); ok {
		return out, true
	}
	if v.kind == KindNumber {
		return t.GetNumber(v.num)
	}
	return "", false
}
