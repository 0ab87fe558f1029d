package facturx

import (
	"context"
	"io"

	"github.com/shopspring/decimal"

	"github.com/rezonia/facturx-engine/internal/dedup"
	"github.com/rezonia/facturx-engine/internal/export"
	cii "github.com/rezonia/facturx-engine/internal/facturx"
	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/parser"
	"github.com/rezonia/facturx-engine/internal/partner"
)

// RenderOption configures RenderCII
type RenderOption = cii.Option

// WithoutDeclaration omits the XML declaration
func WithoutDeclaration() RenderOption {
	return cii.WithoutDeclaration()
}

// WithGuideline overrides the guideline identifier of the document context
func WithGuideline(id string) RenderOption {
	return cii.WithGuideline(id)
}

// Compute recomputes the VAT breakdown and the derived totals of inv in place
func Compute(inv *Invoice) {
	inv.Recalculate()
}

// ComputeVatBreakdowns groups items by rate and category and spreads the
// document level charge and discount over the groups
func ComputeVatBreakdowns(items []InvoiceItem, charge, discount decimal.Decimal) []VatBreakdown {
	return model.ComputeVatBreakdowns(items, charge, discount)
}

// RenderCII serializes inv as a Factur-X CII document. Totals are written as
// they are; call Compute first to refresh them.
func RenderCII(inv *Invoice, opts ...RenderOption) string {
	return cii.Render(inv, opts...)
}

// FormatDate converts an invoice date to the CII YYYYMMDD form
func FormatDate(date string) string {
	return cii.FormatDate(date)
}

// CompileTemplate validates a flat template configuration
func CompileTemplate(cfg TemplateConfig) (*Template, error) {
	return export.CompileTemplate(cfg)
}

// ExportFlat renders invoices through a flat template
func ExportFlat(invoices []*Invoice, tpl *Template, tables LookupTables) string {
	return export.RenderFlat(invoices, tpl, tables)
}

// EncodeFlat renders invoices through a flat template and converts the
// result to the template charset
func EncodeFlat(invoices []*Invoice, tpl *Template, tables LookupTables) ([]byte, error) {
	return export.Encode(export.RenderFlat(invoices, tpl, tables), tpl)
}

// ExportXML renders invoices through an XML mapping profile
func ExportXML(invoices []*Invoice, profile *XMLMappingProfile) string {
	return export.RenderXML(invoices, profile)
}

// DedupKey returns the duplicate detection key of a supplier and invoice number
func DedupKey(supplier, invoiceNumber string) string {
	return dedup.Key(supplier, invoiceNumber)
}

// NewMatcher returns a partner matcher over records
func NewMatcher(records []MasterData) *partner.Matcher {
	return partner.NewMatcher(records)
}

// Parse decodes one invoice from JSON or CII XML
func Parse(ctx context.Context, r io.Reader) (*Invoice, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewParseError(model.FormatUnknown, "", "failed to read input", err)
	}
	return parser.NewRegistry().Parse(ctx, content)
}

// ParseAll decodes every invoice from JSON (object or array) or CII XML
func ParseAll(ctx context.Context, r io.Reader) ([]*Invoice, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewParseError(model.FormatUnknown, "", "failed to read input", err)
	}
	return parser.NewRegistry().ParseAll(ctx, content)
}
