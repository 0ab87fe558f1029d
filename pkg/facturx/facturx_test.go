package facturx_test

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/facturx-engine/pkg/facturx"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sample() *facturx.Invoice {
	return &facturx.Invoice{
		InvoiceNumber: "INV-001",
		InvoiceDate:   "2024-03-15",
		Supplier:      "ACME Corp",
		SupplierSiret: "12345678900012",
		Items: []facturx.InvoiceItem{
			{Description: "Widget", Quantity: d("2"), UnitPrice: d("10"), Amount: d("20.00"), TaxRate: d("20"), VatCategory: "S"},
			{Description: "Book", Quantity: d("1"), UnitPrice: d("5"), Amount: d("5.00"), TaxRate: d("10"), VatCategory: "S"},
		},
	}
}

func TestCompute(t *testing.T) {
	inv := sample()
	facturx.Compute(inv)

	assert.Equal(t, "25.00", inv.AmountExclVat.StringFixed(2))
	assert.Equal(t, "4.50", inv.TotalVat.StringFixed(2))
	assert.Equal(t, "29.50", inv.AmountInclVat.StringFixed(2))
	assert.True(t, inv.AmountInclVat.Equal(inv.AmountExclVat.Add(inv.TotalVat)))
}

func TestComputeVatBreakdowns_WithCharge(t *testing.T) {
	inv := sample()
	breakdowns := facturx.ComputeVatBreakdowns(inv.Items, d("10"), d("0"))
	require.Len(t, breakdowns, 2)

	sum := decimal.Zero
	for _, b := range breakdowns {
		sum = sum.Add(b.VatTaxableAmount)
	}
	assert.Equal(t, "35.00", sum.StringFixed(2))
}

func TestRenderCII(t *testing.T) {
	inv := sample()
	facturx.Compute(inv)

	out := facturx.RenderCII(inv, facturx.WithoutDeclaration())
	assert.True(t, strings.HasPrefix(out, "<rsm:CrossIndustryInvoice"))
	assert.Contains(t, out, "20240315")

	out = facturx.RenderCII(inv, facturx.WithGuideline("urn:factur-x.eu:1p0:basic"))
	assert.Contains(t, out, "urn:factur-x.eu:1p0:basic")
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "20240315", facturx.FormatDate("15/03/2024"))
}

func TestExportFlat(t *testing.T) {
	tpl, err := facturx.CompileTemplate(facturx.TemplateConfig{
		Name:      "basic",
		Separator: ";",
		Columns: []facturx.ColumnConfig{
			{Header: "Number", Type: "field", Value: "invoiceNumber"},
			{Header: "Account", Type: "lookup", Value: "item.vatCategory", Table: "accounts"},
		},
	})
	require.NoError(t, err)

	tables := facturx.LookupTables{{Name: "accounts", Entries: []facturx.LookupEntry{{Key: "s", Value: "445661"}}}}
	out := facturx.ExportFlat([]*facturx.Invoice{sample()}, tpl, tables)
	assert.Equal(t, "Number;Account\nINV-001;445661\nINV-001;445661\n", out)

	encoded, err := facturx.EncodeFlat([]*facturx.Invoice{sample()}, tpl, tables)
	require.NoError(t, err)
	assert.Equal(t, out, string(encoded))
}

func TestCompileTemplate_Invalid(t *testing.T) {
	_, err := facturx.CompileTemplate(facturx.TemplateConfig{
		Columns: []facturx.ColumnConfig{{Header: "x", Type: "script"}},
	})
	var verr *facturx.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestExportXML(t *testing.T) {
	out := facturx.ExportXML([]*facturx.Invoice{sample()}, &facturx.XMLMappingProfile{
		RootTag:  "Doc",
		ItemTag:  "Row",
		Mappings: []facturx.FieldMapping{{Field: "bt-1", Tag: "Num", Enabled: true}},
	})
	assert.Equal(t, 2, strings.Count(out, "<Num>INV-001</Num>"))
}

func TestDedupKeyAndMatcher(t *testing.T) {
	assert.Equal(t, facturx.DedupKey("ACME Corp", "INV-001"), facturx.DedupKey("acme corp", "inv001"))

	m := facturx.NewMatcher([]facturx.MasterData{{FiscalID: "12345678900012", ErpCode: "F1"}})
	_, ok := m.MatchFiscalID("123456789000123")
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	inv := sample()
	facturx.Compute(inv)

	parsed, err := facturx.Parse(context.Background(), strings.NewReader(facturx.RenderCII(inv)))
	require.NoError(t, err)
	assert.Equal(t, "INV-001", parsed.InvoiceNumber)
	assert.Equal(t, "2024-03-15", parsed.InvoiceDate)

	all, err := facturx.ParseAll(context.Background(), strings.NewReader(`[{"invoiceNumber":"A"},{"invoiceNumber":"B"}]`))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = facturx.Parse(context.Background(), strings.NewReader("???"))
	var perr *facturx.ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestProcessor(t *testing.T) {
	nop := zerolog.Nop()
	opts := facturx.DefaultPipelineOptions()
	opts.Logger = &nop
	opts.MasterData = []facturx.MasterData{{FiscalID: "123 456 789 00012", Name: "ACME Corporation", ErpCode: "F1"}}
	proc := facturx.NewProcessor(opts)

	results := proc.ProcessInvoices(context.Background(), []*facturx.Invoice{sample(), sample()})
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	assert.True(t, results[0].Matched)
	assert.Equal(t, "F1", results[0].Invoice.SupplierErpCode)
	assert.ErrorIs(t, results[1].Err, facturx.ErrDuplicate)
	assert.True(t, proc.Seen("inv001_acmecorporation"))
}

func TestProcessor_Process(t *testing.T) {
	nop := zerolog.Nop()
	opts := facturx.DefaultPipelineOptions()
	opts.Logger = &nop
	opts.KnownKeys = []string{"b_x"}
	proc := facturx.NewProcessor(opts)

	results, err := proc.Process(context.Background(), strings.NewReader(`[{"invoiceNumber":"A","supplier":"X"},{"invoiceNumber":"B","supplier":"X"}]`))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, facturx.FormatJSON, results[0].Format)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, facturx.ErrDuplicate)

	_, err = proc.Process(context.Background(), strings.NewReader("not an invoice"))
	assert.Error(t, err)
}
