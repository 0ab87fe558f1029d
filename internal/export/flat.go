package export

import (
	"strings"

	"github.com/rezonia/facturx-engine/internal/model"
)

// RenderFlat writes a header line and one row per (invoice, item) in input
// order. An invoice without items yields a single row whose item fields are
// empty. Every line ends with "\n". A template without columns renders only
// the (empty) header line.
func RenderFlat(invoices []*model.Invoice, tpl *Template, tables LookupTables) string {
	var b strings.Builder

	sep := ","
	var columns []Column
	if tpl != nil {
		columns = tpl.Columns
		if tpl.Separator != "" {
			sep = tpl.Separator
		}
	}

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.Header
	}
	writeRow(&b, headers, sep)

	if len(columns) == 0 {
		return b.String()
	}

	cells := make([]string, len(columns))
	emit := func(ctx *RowContext) {
		for i, col := range columns {
			cells[i] = Evaluate(col.Source, ctx, tables)
		}
		writeRow(&b, cells, sep)
	}

	for _, inv := range invoices {
		if inv == nil {
			continue
		}
		if len(inv.Items) == 0 {
			emit(&RowContext{Invoice: inv})
			continue
		}
		for i := range inv.Items {
			emit(&RowContext{Invoice: inv, Item: &inv.Items[i]})
		}
	}

	return b.String()
}

func writeRow(b *strings.Builder, cells []string, sep string) {
	for i, c := range cells {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(EscapeCell(c, sep))
	}
	b.WriteByte('\n')
}

// EscapeCell quotes a cell holding the separator, a comma, a double quote or
// a line break, doubling inner quotes.
func EscapeCell(s, sep string) string {
	if !strings.ContainsAny(s, ",\"\n\r") && (sep == "" || !strings.Contains(s, sep)) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
