// Package parser decodes incoming invoice records. Each supported encoding
// has an Adapter; the Registry detects which one applies.
package parser

import (
	"bytes"
	"context"
	"io"

	"github.com/rezonia/facturx-engine/internal/model"
)

// Adapter decodes one input format into Invoice
type Adapter interface {
	// Parse decodes a single invoice
	Parse(ctx context.Context, r io.Reader) (*model.Invoice, error)

	// CanParse returns true if adapter can handle this content
	CanParse(content []byte) bool

	// Format returns the input format handled
	Format() model.Format
}

// BatchAdapter is implemented by adapters whose format can carry several
// invoices in one document
type BatchAdapter interface {
	Adapter
	ParseAll(ctx context.Context, r io.Reader) ([]*model.Invoice, error)
}

// Registry holds all registered adapters
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates registry with all adapters
func NewRegistry() *Registry {
	return &Registry{
		adapters: []Adapter{
			NewCIIAdapter(),  // <rsm:CrossIndustryInvoice>
			NewJSONAdapter(), // leading { or [
		},
	}
}

// Detect identifies the adapter for content
func (r *Registry) Detect(content []byte) (Adapter, error) {
	for _, a := range r.adapters {
		if a.CanParse(content) {
			return a, nil
		}
	}
	return nil, model.NewParseError(model.FormatUnknown, "root", "unknown input format, no matching adapter found", nil)
}

// Parse decodes a single invoice using the matching adapter
func (r *Registry) Parse(ctx context.Context, content []byte) (*model.Invoice, error) {
	adapter, err := r.Detect(content)
	if err != nil {
		return nil, err
	}
	return adapter.Parse(ctx, bytes.NewReader(content))
}

// ParseAll decodes every invoice in content. Single-invoice formats return
// a one element slice.
func (r *Registry) ParseAll(ctx context.Context, content []byte) ([]*model.Invoice, error) {
	adapter, err := r.Detect(content)
	if err != nil {
		return nil, err
	}
	if batch, ok := adapter.(BatchAdapter); ok {
		return batch.ParseAll(ctx, bytes.NewReader(content))
	}
	inv, err := adapter.Parse(ctx, bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	return []*model.Invoice{inv}, nil
}

// RegisterAdapter adds a custom adapter to the registry
func (r *Registry) RegisterAdapter(a Adapter) {
	// Add at the beginning so custom adapters take priority
	r.adapters = append([]Adapter{a}, r.adapters...)
}

// GetAdapter returns adapter for a specific format
func (r *Registry) GetAdapter(format model.Format) Adapter {
	for _, a := range r.adapters {
		if a.Format() == format {
			return a
		}
	}
	return nil
}
