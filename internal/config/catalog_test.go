package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rezonia/facturx-engine/internal/config"
	"github.com/rezonia/facturx-engine/internal/export"
	"github.com/rezonia/facturx-engine/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTemplates(t *testing.T) {
	path := writeFile(t, "templates.yaml", `templates:
  - name: sage
    separator: ";"
    encoding: windows-1252
    columns:
      - header: Journal
        type: static
        value: HA
      - header: Piece
        type: field
        value: invoice.invoiceNumber
      - header: Libelle
        type: composite
        value: "{{supplier}} {{invoiceNumber}}"
      - header: Compte
        type: lookup
        value: item.vatCategory
        table: vat_accounts
        default: "445660"
`)

	templates, err := config.LoadTemplates(path)
	require.NoError(t, err)
	require.Len(t, templates, 1)

	tpl := templates[0]
	assert.Equal(t, "sage", tpl.Name)
	assert.Equal(t, ";", tpl.Separator)
	assert.Equal(t, export.EncodingWindows1252, tpl.Encoding)
	require.Len(t, tpl.Columns, 4)
	assert.Equal(t, export.LookupSource{Path: "item.vatCategory", Table: "vat_accounts", Default: "445660"}, tpl.Columns[3].Source)
}

func TestLoadTemplates_UnknownColumnType(t *testing.T) {
	path := writeFile(t, "templates.yaml", `templates:
  - name: broken
    columns:
      - header: X
        type: formula
        value: "=A1"
`)

	_, err := config.LoadTemplates(path)
	require.Error(t, err)

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "columns[0].type", verr.Field)
	assert.Contains(t, err.Error(), `template "broken"`)
}

func TestLoadTemplates_MissingName(t *testing.T) {
	path := writeFile(t, "templates.yaml", "templates:\n  - separator: \",\"\n")

	_, err := config.LoadTemplates(path)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "templates[0].name", verr.Field)
}

func TestLoadTemplates_BadYAML(t *testing.T) {
	path := writeFile(t, "templates.yaml", "templates: [unclosed")

	_, err := config.LoadTemplates(path)
	assert.Error(t, err)
}

func TestLoadProfiles(t *testing.T) {
	path := writeFile(t, "profiles.yaml", `profiles:
  - name: erp
    root_tag: Factures
    item_tag: Facture
    mappings:
      - field: invoiceNumber
        tag: Numero
        enabled: true
      - field: note
        tag: Note
        enabled: false
`)

	profiles, err := config.LoadProfiles(path)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Factures", profiles[0].RootTag)
	assert.Equal(t, "Facture", profiles[0].ItemTag)
	assert.Len(t, profiles[0].EnabledMappings(), 1)
}

func TestLoadProfiles_InvalidTag(t *testing.T) {
	path := writeFile(t, "profiles.yaml", `profiles:
  - name: bad
    mappings:
      - field: invoiceNumber
        tag: "1 Numero"
        enabled: true
`)

	_, err := config.LoadProfiles(path)
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestLoadLookupTables_YAML(t *testing.T) {
	path := writeFile(t, "tables.yaml", `tables:
  - name: vat_accounts
    entries:
      - key: S
        value: "445661"
      - key: Z
        value: "445662"
`)

	tables, err := config.LoadLookupTables(path)
	require.NoError(t, err)

	v, ok := tables.Lookup("vat_accounts", "s")
	assert.True(t, ok)
	assert.Equal(t, "445661", v)
}

func TestLoadLookupTables_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "vat_accounts"))
	require.NoError(t, f.SetCellValue("vat_accounts", "A1", "Key"))
	require.NoError(t, f.SetCellValue("vat_accounts", "B1", "Value"))
	require.NoError(t, f.SetCellValue("vat_accounts", "A2", "S"))
	require.NoError(t, f.SetCellValue("vat_accounts", "B2", "445661"))
	require.NoError(t, f.SetCellValue("vat_accounts", "A3", "AE"))
	require.NoError(t, f.SetCellValue("vat_accounts", "B3", "445663"))

	_, err := f.NewSheet("units")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("units", "A1", "C62"))
	require.NoError(t, f.SetCellValue("units", "B1", "U"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	tables, err := config.LoadLookupTables(path)
	require.NoError(t, err)
	require.Len(t, tables, 2)

	vat := tables.Find("vat_accounts")
	require.NotNil(t, vat)
	assert.Len(t, vat.Entries, 2)

	v, ok := tables.Lookup("vat_accounts", "ae")
	assert.True(t, ok)
	assert.Equal(t, "445663", v)

	v, ok = tables.Lookup("units", "C62")
	assert.True(t, ok)
	assert.Equal(t, "U", v)
}

func TestLoadMasterData_YAML(t *testing.T) {
	path := writeFile(t, "partners.yaml", `partners:
  - fiscal_id: "123 456 789 00012"
    name: Dupont SA
    erp_code: F001
    iban: FR7612345678901234567890123
`)

	records, err := config.LoadMasterData(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "F001", records[0].ErpCode)
	assert.Equal(t, "123 456 789 00012", records[0].FiscalID)
}

func TestLoadMasterData_CSV(t *testing.T) {
	path := writeFile(t, "partners.csv", "name;fiscal_id;erp_code\nDupont SA;12345678900012;F001\n\"Martin; Fils\";98765432100019;F002\n")

	records, err := config.LoadMasterData(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Dupont SA", records[0].Name)
	assert.Equal(t, "12345678900012", records[0].FiscalID)
	assert.Equal(t, "Martin; Fils", records[1].Name)
	assert.Equal(t, "F002", records[1].ErpCode)
}

func TestReadMasterDataCSV(t *testing.T) {
	t.Run("bom and comma", func(t *testing.T) {
		records, err := config.ReadMasterDataCSV(strings.NewReader("\ufefffiscal_id,name,bic\n111,Acme,AGRIFRPP\n"))
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "111", records[0].FiscalID)
		assert.Equal(t, "AGRIFRPP", records[0].Bic)
	})

	t.Run("empty input", func(t *testing.T) {
		records, err := config.ReadMasterDataCSV(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("missing fiscal id column", func(t *testing.T) {
		_, err := config.ReadMasterDataCSV(strings.NewReader("name,erp_code\nAcme,F1\n"))
		var verr *model.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestLoadCatalog(t *testing.T) {
	templates := writeFile(t, "templates.yaml", `templates:
  - name: Basic
    columns:
      - header: Number
        type: field
        value: invoiceNumber
`)
	partners := writeFile(t, "partners.csv", "fiscal_id,name,erp_code\n12345678900012,Dupont,F001\n")

	cat, err := config.LoadCatalog(config.DataConfig{
		TemplatesFile:  templates,
		MasterDataFile: partners,
	})
	require.NoError(t, err)

	tpl, ok := cat.Template("basic")
	require.True(t, ok)
	assert.Equal(t, "Basic", tpl.Name)

	_, ok = cat.Profile("erp")
	assert.False(t, ok)
	assert.Empty(t, cat.Tables)

	m := cat.Matcher()
	assert.Equal(t, 1, m.Len())
	rec, ok := m.MatchFiscalID("123 456 789 00012")
	require.True(t, ok)
	assert.Equal(t, "F001", rec.ErpCode)
}

func TestLoadCatalog_PropagatesErrors(t *testing.T) {
	_, err := config.LoadCatalog(config.DataConfig{ProfilesFile: filepath.Join(t.TempDir(), "none.yaml")})
	assert.Error(t, err)
}
