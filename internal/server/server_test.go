package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/facturx-engine/internal/config"
	"github.com/rezonia/facturx-engine/internal/export"
	"github.com/rezonia/facturx-engine/internal/facturx"
	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/partner"
	"github.com/rezonia/facturx-engine/internal/server"
)

const invoiceJSON = `{
  "invoiceNumber": "INV-001",
  "invoiceDate": "15/03/2024",
  "supplier": "Dupont & Fils, SA",
  "supplierSiret": "123 456 789 00012",
  "items": [
    {"description": "Widget", "quantity": "2", "unitPrice": "10", "amount": "20.00", "taxRate": "20", "vatCategory": "S"},
    {"description": "Book", "quantity": "1", "unitPrice": "5", "amount": "5.00", "taxRate": "10", "vatCategory": "S"}
  ]
}`

func newTestServer(t *testing.T) *server.Server {
	t.Helper()

	sage, err := export.CompileTemplate(export.TemplateConfig{
		Name:      "sage",
		Separator: ";",
		Encoding:  "Windows-1252",
		Columns: []export.ColumnConfig{
			{Header: "Fournisseur", Type: "field", Value: "supplier"},
			{Header: "Compte", Type: "lookup", Value: "item.vatCategory", Table: "accounts"},
		},
	})
	require.NoError(t, err)

	catalog := &config.Catalog{
		Templates: []*export.Template{sage},
		Profiles: []*export.XMLMappingProfile{{
			Name:    "erp",
			RootTag: "Factures",
			ItemTag: "Facture",
			Mappings: []export.FieldMapping{
				{Field: "invoiceNumber", Tag: "Numero", Enabled: true},
				{Field: "item.amount", Tag: "Montant", Enabled: true},
			},
		}},
		Tables: export.LookupTables{
			{Name: "accounts", Entries: []export.LookupEntry{{Key: "S", Value: "445661"}}},
		},
		Partners: []partner.MasterData{
			{FiscalID: "12345678900012", Name: "Dupont et Fils", ErpCode: "F001"},
			{FiscalID: "98765432100019", Name: "Martin Transports SARL", ErpCode: "F002"},
		},
	}

	return server.NewServer(&server.Config{Address: ":8080"},
		server.WithCatalog(catalog),
		server.WithLogger(zerolog.Nop()),
	)
}

func do(t *testing.T, srv *server.Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.NotEmpty(t, response["time"])
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/health", "")
	assert.Len(t, w.Header().Get(server.RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(server.RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(server.RequestIDHeader))
}

func TestComputeEndpoint(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodPost, "/api/v1/invoices/compute", invoiceJSON)
	require.Equal(t, http.StatusOK, w.Code)

	var inv model.Invoice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inv))
	assert.Equal(t, "25.00", inv.AmountExclVat.StringFixed(2))
	assert.Equal(t, "4.50", inv.TotalVat.StringFixed(2))
	assert.Equal(t, "29.50", inv.AmountInclVat.StringFixed(2))
	require.Len(t, inv.VatBreakdowns, 2)
	assert.Equal(t, "4.00", inv.VatBreakdowns[0].VatAmount.StringFixed(2))
	assert.Equal(t, "0.50", inv.VatBreakdowns[1].VatAmount.StringFixed(2))
}

func TestComputeEndpoint_InvalidJSON(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodPost, "/api/v1/invoices/compute", `{"items": [`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFacturXEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/invoices/facturx", invoiceJSON)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/xml")

	out := w.Body.String()
	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Contains(t, out, "<ram:GrandTotalAmount>29.50</ram:GrandTotalAmount>")
	assert.Contains(t, out, "Dupont &amp; Fils, SA")
	assert.Contains(t, out, facturx.GuidelineEN16931)

	w = do(t, srv, http.MethodPost, "/api/v1/invoices/facturx?declaration=false", invoiceJSON)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "<rsm:CrossIndustryInvoice"))
}

func TestIngestEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/invoices/ingest", invoiceJSON)
	require.Equal(t, http.StatusOK, w.Code)

	var resp server.IngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Accepted)
	require.Len(t, resp.Results, 1)

	res := resp.Results[0]
	assert.Equal(t, "JSON", res.Format)
	assert.True(t, res.Matched)
	assert.Equal(t, "F001", res.Invoice.SupplierErpCode)
	assert.Equal(t, "Dupont et Fils", res.Invoice.Supplier)
	assert.NotEmpty(t, res.Invoice.ID)
	assert.Equal(t, "inv001_dupontetfils", res.DedupKey)

	w = do(t, srv, http.MethodGet, "/api/v1/dedup/key?supplier=Dupont+et+Fils&invoiceNumber=INV-001", "")
	var key server.DedupKeyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &key))
	assert.Equal(t, "inv001_dupontetfils", key.Key)
	assert.True(t, key.Seen)

	w = do(t, srv, http.MethodPost, "/api/v1/invoices/ingest", invoiceJSON)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Failed)
	assert.True(t, resp.Results[0].Duplicate)
}

func TestIngestEndpoint_EmptyBody(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodPost, "/api/v1/invoices/ingest", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseEndpoint(t *testing.T) {
	srv := newTestServer(t)

	inv := &model.Invoice{
		InvoiceNumber: "CII-9",
		Supplier:      "Acme",
		Items:         []model.InvoiceItem{{Description: "x", Amount: mustDecimal(t, "10.00")}},
	}
	inv.Recalculate()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/parse", strings.NewReader(facturx.Render(inv)))
	req.Header.Set("Content-Type", "application/xml")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp server.ParseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Invoices, 1)
	assert.Equal(t, "CII-9", resp.Invoices[0].InvoiceNumber)

	w = do(t, srv, http.MethodPost, "/api/v1/parse", "hello")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestExportFlatEndpoint_Catalog(t *testing.T) {
	body := `{"template": "SAGE", "invoices": [` + invoiceJSON + `]}`
	w := do(t, newTestServer(t), http.MethodPost, "/api/v1/export/flat", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=windows-1252", w.Header().Get("Content-Type"))

	want := "Fournisseur;Compte\n" +
		"\"Dupont & Fils, SA\";445661\n" +
		"\"Dupont & Fils, SA\";445661\n"
	assert.Equal(t, want, w.Body.String())
}

func TestExportFlatEndpoint_InlineTemplate(t *testing.T) {
	body := `{
  "templateConfig": {"name": "inline", "separator": ",", "encoding": "ISO-8859-1", "columns": [
    {"header": "Libellé", "type": "composite", "value": "{{invoiceNumber}}/{{item.description}}"},
    {"header": "Journal", "type": "static", "value": "HA"}
  ]},
  "invoices": [` + invoiceJSON + `]
}`
	w := do(t, newTestServer(t), http.MethodPost, "/api/v1/export/flat", body)
	require.Equal(t, http.StatusOK, w.Code)

	out := w.Body.Bytes()
	assert.Equal(t, []byte("Libell\xe9,Journal\n"), out[:len("Libell\xe9,Journal\n")])
	assert.Contains(t, string(out), "INV-001/Widget,HA\n")
}

func TestExportFlatEndpoint_Errors(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/export/flat", `{"template": "missing", "invoices": []}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp server.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "template", resp.Field)

	w = do(t, srv, http.MethodPost, "/api/v1/export/flat", `{"templateConfig": {"columns": [{"header": "x", "type": "macro"}]}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "columns[0].type", resp.Field)
}

func TestExportXMLEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/export/xml", `{"profile": "erp", "invoices": [`+invoiceJSON+`]}`)
	require.Equal(t, http.StatusOK, w.Code)

	out := w.Body.String()
	assert.Equal(t, 2, strings.Count(out, "<Facture>"))
	assert.Contains(t, out, "<Numero>INV-001</Numero>")
	assert.Contains(t, out, "<Montant>20.00</Montant>")

	w = do(t, srv, http.MethodPost, "/api/v1/export/xml", `{"profileConfig": {"mappings": [{"field": "invoiceNumber", "tag": "bad tag", "enabled": true}]}, "invoices": []}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, srv, http.MethodPost, "/api/v1/export/xml", `{"profile": "nope", "invoices": []}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPartnerEndpoints(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/api/v1/partners/match?fiscalId=987+654+321+00019", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rec partner.MasterData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "F002", rec.ErpCode)

	w = do(t, srv, http.MethodGet, "/api/v1/partners/match?fiscalId=9876543210001", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/partners/match", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/partners/suggest?name=martin", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sugg server.SuggestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sugg))
	require.Len(t, sugg.Suggestions, 1)
	assert.Equal(t, "F002", sugg.Suggestions[0].ErpCode)

	w = do(t, srv, http.MethodGet, "/api/v1/partners/suggest?name=ma", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sugg))
	assert.Empty(t, sugg.Suggestions)
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}
