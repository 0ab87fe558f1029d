// Package dedup derives duplicate detection keys for invoices and keeps the
// set of keys already admitted by an ingestion run.
package dedup

import (
	"errors"
	"strings"
	"sync"

	"github.com/rezonia/facturx-engine/internal/model"
)

// ErrDuplicate is returned when an invoice key was already admitted
var ErrDuplicate = errors.New("duplicate invoice")

// Key returns clean(invoiceNumber) + "_" + clean(supplier), where clean
// lower-cases and drops everything outside [a-z0-9].
func Key(supplier, invoiceNumber string) string {
	return clean(invoiceNumber) + "_" + clean(supplier)
}

// InvoiceKey is Key applied to an invoice's supplier name and number
func InvoiceKey(inv *model.Invoice) string {
	return Key(inv.Supplier, inv.InvoiceNumber)
}

func clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Set holds the keys seen so far. The zero value is ready to use and safe
// for concurrent use.
type Set struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewSet creates a set preloaded with already stored keys
func NewSet(keys ...string) *Set {
	s := &Set{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

// Admit records key and reports whether it was new
func (s *Set) Admit(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys == nil {
		s.keys = make(map[string]struct{})
	}
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Contains reports whether key was admitted
func (s *Set) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// Forget removes key, e.g. when the stored invoice is deleted
func (s *Set) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
}

// Len returns the number of admitted keys
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
