// Package facturx provides the public API of the engine.
//
// It recomputes invoice totals, serializes invoices as Factur-X (EN16931
// CII) XML, exports them through flat or XML templates and reconciles
// suppliers against partner master data.
//
// Example usage:
//
//	inv, err := facturx.Parse(ctx, reader)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	facturx.Compute(inv)
//	fmt.Println(facturx.RenderCII(inv))
package facturx

import (
	"github.com/rezonia/facturx-engine/internal/export"
	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/partner"
)

// Re-export core types for public API
type (
	Invoice      = model.Invoice
	InvoiceItem  = model.InvoiceItem
	VatBreakdown = model.VatBreakdown
	InvoiceType  = model.InvoiceType
	Format       = model.Format
	MasterData   = partner.MasterData
)

// Re-export export configuration types
type (
	Template          = export.Template
	TemplateConfig    = export.TemplateConfig
	ColumnConfig      = export.ColumnConfig
	XMLMappingProfile = export.XMLMappingProfile
	FieldMapping      = export.FieldMapping
	LookupTable       = export.LookupTable
	LookupEntry       = export.LookupEntry
	LookupTables      = export.LookupTables
)

// Re-export invoice types
const (
	InvoiceTypeStandard   = model.InvoiceTypeStandard
	InvoiceTypeCreditNote = model.InvoiceTypeCreditNote
	InvoiceTypeCorrective = model.InvoiceTypeCorrective
	InvoiceTypeSelfBilled = model.InvoiceTypeSelfBilled
)

// Re-export input formats
const (
	FormatJSON    = model.FormatJSON
	FormatCII     = model.FormatCII
	FormatUnknown = model.FormatUnknown
)

// Re-export error types
type (
	ParseError      = model.ParseError
	ValidationError = model.ValidationError
)
