package export

import (
	"fmt"
	"strings"

	"github.com/rezonia/facturx-engine/internal/model"
)

// Supported output charsets
const (
	EncodingUTF8        = "UTF-8"
	EncodingISO88591    = "ISO-8859-1"
	EncodingWindows1252 = "Windows-1252"
)

// Template is a compiled flat export template
type Template struct {
	Name      string
	Separator string
	Columns   []Column
	Encoding  string
	BOM       bool
}

// ColumnConfig is a column as authored in configuration
type ColumnConfig struct {
	Header  string `json:"header" yaml:"header"`
	Type    string `json:"type" yaml:"type"`
	Value   string `json:"value" yaml:"value"`
	Table   string `json:"table,omitempty" yaml:"table"`
	Default string `json:"default,omitempty" yaml:"default"`
}

// TemplateConfig is a flat template as authored in configuration
type TemplateConfig struct {
	Name      string         `json:"name" yaml:"name"`
	Separator string         `json:"separator" yaml:"separator"`
	Encoding  string         `json:"encoding,omitempty" yaml:"encoding"`
	BOM       bool           `json:"bom,omitempty" yaml:"bom"`
	Columns   []ColumnConfig `json:"columns" yaml:"columns"`
}

// CompileTemplate validates cfg and turns every column into its typed
// source. Unknown column types and unsupported separators or encodings are
// configuration errors; unknown field paths are not (they render empty).
func CompileTemplate(cfg TemplateConfig) (*Template, error) {
	sep, err := normalizeSeparator(cfg.Separator)
	if err != nil {
		return nil, err
	}
	enc, err := normalizeEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	tpl := &Template{
		Name:      cfg.Name,
		Separator: sep,
		Encoding:  enc,
		BOM:       cfg.BOM,
		Columns:   make([]Column, 0, len(cfg.Columns)),
	}

	for i, c := range cfg.Columns {
		field := fmt.Sprintf("columns[%d]", i)

		var src ColumnSource
		switch ColumnType(strings.ToLower(strings.TrimSpace(c.Type))) {
		case ColumnStatic:
			src = StaticSource{Value: c.Value}
		case ColumnField:
			if strings.TrimSpace(c.Value) == "" {
				return nil, model.NewValidationError(field+".value", c.Value, "required", "field column needs a path")
			}
			src = FieldSource{Path: strings.TrimSpace(c.Value)}
		case ColumnComposite:
			src = CompositeSource{Pattern: c.Value}
		case ColumnLookup:
			if strings.TrimSpace(c.Value) == "" {
				return nil, model.NewValidationError(field+".value", c.Value, "required", "lookup column needs a source path")
			}
			if strings.TrimSpace(c.Table) == "" {
				return nil, model.NewValidationError(field+".table", c.Table, "required", "lookup column needs a table")
			}
			src = LookupSource{Path: strings.TrimSpace(c.Value), Table: c.Table, Default: c.Default}
		default:
			return nil, model.NewValidationError(field+".type", c.Type, "oneof=static field composite lookup", "unknown column type")
		}

		tpl.Columns = append(tpl.Columns, Column{Header: c.Header, Source: src})
	}

	return tpl, nil
}

// UnknownFields lists the paths referenced by the template that the field
// registry does not know. They render as empty cells.
func (t *Template) UnknownFields() []string {
	var unknown []string
	for _, col := range t.Columns {
		for _, p := range referencedPaths(col.Source) {
			if !KnownField(p) {
				unknown = append(unknown, p)
			}
		}
	}
	return unknown
}

func normalizeSeparator(s string) (string, error) {
	switch s {
	case "", ",":
		return ",", nil
	case ";":
		return ";", nil
	case "\t", "\\t", "tab", "TAB":
		return "\t", nil
	}
	return "", model.NewValidationError("separator", s, "oneof=, ; tab", "unsupported separator")
}

func normalizeEncoding(e string) (string, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(e), "_", "-")) {
	case "", "UTF-8", "UTF8":
		return EncodingUTF8, nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return EncodingISO88591, nil
	case "WINDOWS-1252", "CP1252":
		return EncodingWindows1252, nil
	}
	return "", model.NewValidationError("encoding", e, "oneof=UTF-8 ISO-8859-1 Windows-1252", "unsupported encoding")
}
