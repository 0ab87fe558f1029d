package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/rezonia/facturx-engine/internal/model"
)

// JSONAdapter decodes camelCase JSON records, either one object or an array
type JSONAdapter struct{}

// NewJSONAdapter creates a new JSON adapter
func NewJSONAdapter() *JSONAdapter {
	return &JSONAdapter{}
}

// Format returns the input format
func (a *JSONAdapter) Format() model.Format {
	return model.FormatJSON
}

// CanParse checks for a JSON object or array
func (a *JSONAdapter) CanParse(content []byte) bool {
	trimmed := bytes.TrimLeft(content, " \t\r\n\ufeff")
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

// Parse decodes a single invoice. An array yields its first element.
func (a *JSONAdapter) Parse(ctx context.Context, r io.Reader) (*model.Invoice, error) {
	all, err := a.ParseAll(ctx, r)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, model.NewParseError(model.FormatJSON, "invoices", "no invoices found", nil)
	}
	return all[0], nil
}

// ParseAll decodes an object or an array of objects
func (a *JSONAdapter) ParseAll(ctx context.Context, r io.Reader) ([]*model.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewParseError(model.FormatJSON, "content", "failed to read content", err)
	}
	content = bytes.TrimLeft(content, " \t\r\n\ufeff")

	if len(content) > 0 && content[0] == '[' {
		var list []*model.Invoice
		if err := json.Unmarshal(content, &list); err != nil {
			return nil, model.NewParseError(model.FormatJSON, "json", "failed to parse JSON array", err)
		}
		out := list[:0]
		for _, inv := range list {
			if inv != nil {
				out = append(out, inv)
			}
		}
		return out, nil
	}

	var inv model.Invoice
	if err := json.Unmarshal(content, &inv); err != nil {
		return nil, model.NewParseError(model.FormatJSON, "json", "failed to parse JSON", err)
	}
	return []*model.Invoice{&inv}, nil
}
