package partner_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/partner"
)

func sampleMasterData() []partner.MasterData {
	return []partner.MasterData{
		{FiscalID: "12345678900012", Name: "ACME Industries SAS", ErpCode: "F001", Iban: "FR7630006000011234567890189", Bic: "AGRIFRPP", VatNumber: "FR12123456789"},
		{FiscalID: "987 654 321 00045", Name: "Dupont & Fils", ErpCode: "F002"},
		{FiscalID: "55555555500055", Name: "Société Générale Fournitures", ErpCode: "F003"},
	}
}

func TestMatcher_MatchFiscalID(t *testing.T) {
	m := partner.NewMatcher(sampleMasterData())

	tests := []struct {
		name     string
		id       string
		expected string
		found    bool
	}{
		{"exact", "12345678900012", "F001", true},
		{"input with spaces", "123 456 789 00012", "F001", true},
		{"master with spaces", "98765432100045", "F002", true},
		{"tabs and newlines", "\t123456789\n00012 ", "F001", true},
		{"one extra digit", "123456789000123", "", false},
		{"one missing digit", "1234567890001", "", false},
		{"empty", "", "", false},
		{"only whitespace", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := m.MatchFiscalID(tt.id)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				require.NotNil(t, rec)
				assert.Equal(t, tt.expected, rec.ErpCode)
			} else {
				assert.Nil(t, rec)
			}
		})
	}
}

func TestMatcher_Match_AppliesEnrichment(t *testing.T) {
	m := partner.NewMatcher(sampleMasterData())
	inv := &model.Invoice{
		Supplier:      "ACME IND",
		SupplierSiret: "123 456 789 00012",
		SupplierIban:  "FR00OLD",
	}

	enrichment, ok := m.Match(inv)
	require.True(t, ok)
	enrichment.Apply(inv)

	assert.Equal(t, "ACME Industries SAS", inv.Supplier)
	assert.Equal(t, "FR7630006000011234567890189", inv.SupplierIban)
	assert.Equal(t, "AGRIFRPP", inv.SupplierBic)
	assert.Equal(t, "FR12123456789", inv.SupplierVatNumber)
	assert.Equal(t, "F001", inv.SupplierErpCode)
	assert.True(t, inv.SupplierMatched)
}

func TestEnrichment_Apply_KeepsPopulatedFields(t *testing.T) {
	m := partner.NewMatcher(sampleMasterData())
	inv := &model.Invoice{
		Supplier:          "Dupont",
		SupplierSiret:     "98765432100045",
		SupplierIban:      "FR7610107001011234567890129",
		SupplierBic:       "BREDFRPP",
		SupplierVatNumber: "FR99987654321",
	}

	enrichment, ok := m.Match(inv)
	require.True(t, ok)
	enrichment.Apply(inv)

	// master record has no IBAN/BIC/VAT: nothing is blanked
	assert.Equal(t, "Dupont & Fils", inv.Supplier)
	assert.Equal(t, "FR7610107001011234567890129", inv.SupplierIban)
	assert.Equal(t, "BREDFRPP", inv.SupplierBic)
	assert.Equal(t, "FR99987654321", inv.SupplierVatNumber)
	assert.Equal(t, "F002", inv.SupplierErpCode)
	assert.True(t, inv.SupplierMatched)
}

func TestMatcher_Match_NoMatch(t *testing.T) {
	m := partner.NewMatcher(sampleMasterData())
	inv := &model.Invoice{Supplier: "Unknown", SupplierSiret: "00000000000000"}

	enrichment, ok := m.Match(inv)
	assert.False(t, ok)

	enrichment.Apply(inv)
	assert.Equal(t, "Unknown", inv.Supplier)
	assert.False(t, inv.SupplierMatched)
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ACME Industries SAS", "acme industries"},
		{"Société Générale", "societe generale"},
		{"Dupont & Fils, S.A.", "dupont fils"},
		{"  Big   Corp  Ltd. ", "big"},
		{"L'Atelier-Bois SARL", "latelier bois"},
		{"GmbH", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, partner.NormalizeName(tt.input))
		})
	}
}

func TestMatcher_Suggest(t *testing.T) {
	m := partner.NewMatcher(sampleMasterData())

	t.Run("query contained in candidate", func(t *testing.T) {
		got := m.Suggest("acme")
		require.Len(t, got, 1)
		assert.Equal(t, "F001", got[0].ErpCode)
	})

	t.Run("candidate contained in query ignoring legal form and accents", func(t *testing.T) {
		got := m.Suggest("SOCIETE GENERALE FOURNITURES SA")
		require.Len(t, got, 1)
		assert.Equal(t, "F003", got[0].ErpCode)
	})

	t.Run("short query", func(t *testing.T) {
		assert.Empty(t, m.Suggest("ac"))
		assert.Empty(t, m.Suggest(""))
		assert.Empty(t, m.Suggest("SAS"))
	})

	t.Run("no candidate", func(t *testing.T) {
		assert.Empty(t, m.Suggest("Nothing Alike"))
	})
}

func TestMatcher_Suggest_LimitAndOrder(t *testing.T) {
	var records []partner.MasterData
	for i := 0; i < 8; i++ {
		records = append(records, partner.MasterData{
			FiscalID: fmt.Sprintf("%014d", i),
			Name:     fmt.Sprintf("Transports Martin %d", i),
			ErpCode:  fmt.Sprintf("T%d", i),
		})
	}
	m := partner.NewMatcher(records)

	got := m.Suggest("transports martin")
	require.Len(t, got, partner.MaxSuggestions)
	for i, rec := range got {
		assert.Equal(t, fmt.Sprintf("T%d", i), rec.ErpCode)
	}
}

func TestNormalizeFiscalID(t *testing.T) {
	assert.Equal(t, "12345678900012", partner.NormalizeFiscalID(" 123 456\t789 00012\n"))
	assert.Equal(t, "", partner.NormalizeFiscalID(""))
}
