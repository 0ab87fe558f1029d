package export

import (
	"regexp"
	"strings"
)

// ColumnType is the configured kind of a column
type ColumnType string

const (
	ColumnStatic    ColumnType = "static"
	ColumnField     ColumnType = "field"
	ColumnComposite ColumnType = "composite"
	ColumnLookup    ColumnType = "lookup"
)

// ColumnSource produces a cell value. The set of implementations is closed:
// StaticSource, FieldSource, CompositeSource and LookupSource.
type ColumnSource interface {
	evaluate(ctx *RowContext, tables LookupTables) string
	Type() ColumnType
}

// StaticSource emits a constant
type StaticSource struct {
	Value string
}

// FieldSource emits a resolved field
type FieldSource struct {
	Path string
}

// CompositeSource interpolates {{path}} placeholders in Pattern
type CompositeSource struct {
	Pattern string
}

// LookupSource transcodes a resolved field through a lookup table, falling
// back to Default when the table or the entry is missing.
type LookupSource struct {
	Path    string
	Table   string
	Default string
}

func (StaticSource) Type() ColumnType    { return ColumnStatic }
func (FieldSource) Type() ColumnType     { return ColumnField }
func (CompositeSource) Type() ColumnType { return ColumnComposite }
func (LookupSource) Type() ColumnType    { return ColumnLookup }

func (s StaticSource) evaluate(*RowContext, LookupTables) string {
	return s.Value
}

func (s FieldSource) evaluate(ctx *RowContext, _ LookupTables) string {
	return ctx.Resolve(s.Path).Format()
}

var placeholder = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

func (s CompositeSource) evaluate(ctx *RowContext, _ LookupTables) string {
	return placeholder.ReplaceAllStringFunc(s.Pattern, func(m string) string {
		path := placeholder.FindStringSubmatch(m)[1]
		return ctx.Resolve(path).Format()
	})
}

func (s LookupSource) evaluate(ctx *RowContext, tables LookupTables) string {
	if v, ok := tables.LookupValue(s.Table, ctx.Resolve(s.Path)); ok {
		return v
	}
	return s.Default
}

// Evaluate computes the cell of src for one row. A nil source is empty.
func Evaluate(src ColumnSource, ctx *RowContext, tables LookupTables) string {
	if src == nil {
		return ""
	}
	return src.evaluate(ctx, tables)
}

// Column is a compiled output column
type Column struct {
	Header string
	Source ColumnSource
}

// referencedPaths lists the field paths a source reads
func referencedPaths(src ColumnSource) []string {
	switch s := src.(type) {
	case FieldSource:
		return []string{s.Path}
	case LookupSource:
		return []string{s.Path}
	case CompositeSource:
		var paths []string
		for _, m := range placeholder.FindAllStringSubmatch(s.Pattern, -1) {
			paths = append(paths, strings.TrimSpace(m[1]))
		}
		return paths
	}
	return nil
}
