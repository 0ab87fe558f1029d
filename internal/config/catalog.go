package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/rezonia/facturx-engine/internal/export"
	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/partner"
)

// Catalog holds the compiled domain configuration used by exports and
// ingestion. It is read-only once loaded.
type Catalog struct {
	Templates []*export.Template
	Profiles  []*export.XMLMappingProfile
	Tables    export.LookupTables
	Partners  []partner.MasterData
}

type templatesFile struct {
	Templates []export.TemplateConfig `yaml:"templates"`
}

type profilesFile struct {
	Profiles []export.XMLMappingProfile `yaml:"profiles"`
}

type tablesFile struct {
	Tables []export.LookupTable `yaml:"tables"`
}

type partnersFile struct {
	Partners []partner.MasterData `yaml:"partners"`
}

// LoadCatalog loads every file named in cfg. Empty paths leave the matching
// catalog section empty.
func LoadCatalog(cfg DataConfig) (*Catalog, error) {
	cat := &Catalog{}
	var err error

	if cfg.TemplatesFile != "" {
		if cat.Templates, err = LoadTemplates(cfg.TemplatesFile); err != nil {
			return nil, err
		}
	}
	if cfg.ProfilesFile != "" {
		if cat.Profiles, err = LoadProfiles(cfg.ProfilesFile); err != nil {
			return nil, err
		}
	}
	if cfg.LookupTablesFile != "" {
		if cat.Tables, err = LoadLookupTables(cfg.LookupTablesFile); err != nil {
			return nil, err
		}
	}
	if cfg.MasterDataFile != "" {
		if cat.Partners, err = LoadMasterData(cfg.MasterDataFile); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// Template returns the template with the given name (case-insensitive)
func (c *Catalog) Template(name string) (*export.Template, bool) {
	for _, t := range c.Templates {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return nil, false
}

// Profile returns the XML profile with the given name (case-insensitive)
func (c *Catalog) Profile(name string) (*export.XMLMappingProfile, bool) {
	for _, p := range c.Profiles {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return nil, false
}

// Matcher builds a partner matcher over the loaded master data
func (c *Catalog) Matcher() *partner.Matcher {
	return partner.NewMatcher(c.Partners)
}

// LoadTemplates reads and compiles flat export templates from a YAML file
func LoadTemplates(path string) ([]*export.Template, error) {
	var doc templatesFile
	if err := readYAML(path, &doc); err != nil {
		return nil, err
	}

	out := make([]*export.Template, 0, len(doc.Templates))
	for i, tc := range doc.Templates {
		if strings.TrimSpace(tc.Name) == "" {
			return nil, model.NewValidationError(fmt.Sprintf("templates[%d].name", i), tc.Name, "required", "template name is required")
		}
		tpl, err := export.CompileTemplate(tc)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", tc.Name, err)
		}
		out = append(out, tpl)
	}
	return out, nil
}

// LoadProfiles reads XML mapping profiles from a YAML file
func LoadProfiles(path string) ([]*export.XMLMappingProfile, error) {
	var doc profilesFile
	if err := readYAML(path, &doc); err != nil {
		return nil, err
	}

	out := make([]*export.XMLMappingProfile, 0, len(doc.Profiles))
	for i := range doc.Profiles {
		p := doc.Profiles[i]
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", p.Name, err)
		}
		out = append(out, &p)
	}
	return out, nil
}

// LoadLookupTables reads lookup tables from YAML, or from an XLSX workbook
// where each sheet is a table with keys in column A and values in column B.
func LoadLookupTables(path string) (export.LookupTables, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return loadLookupTablesXLSX(path)
	}

	var doc tablesFile
	if err := readYAML(path, &doc); err != nil {
		return nil, err
	}
	return export.LookupTables(doc.Tables), nil
}

func loadLookupTablesXLSX(path string) (export.LookupTables, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var tables export.LookupTables
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}

		table := export.LookupTable{Name: sheet}
		for i, row := range rows {
			if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
				continue
			}
			if i == 0 && strings.EqualFold(strings.TrimSpace(row[0]), "key") {
				continue
			}
			entry := export.LookupEntry{Key: strings.TrimSpace(row[0])}
			if len(row) > 1 {
				entry.Value = row[1]
			}
			table.Entries = append(table.Entries, entry)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// LoadMasterData reads partner master data from YAML or CSV. A CSV file needs
// a header row naming its columns (fiscal_id, name, erp_code, iban, bic,
// vat_number) in any order.
func LoadMasterData(path string) ([]partner.MasterData, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open master data: %w", err)
		}
		defer f.Close()
		return ReadMasterDataCSV(f)
	}

	var doc partnersFile
	if err := readYAML(path, &doc); err != nil {
		return nil, err
	}
	return doc.Partners, nil
}

// ReadMasterDataCSV decodes master data records from r. The delimiter is
// guessed from the header line (comma or semicolon).
func ReadMasterDataCSV(r io.Reader) ([]partner.MasterData, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read master data: %w", err)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if header, _, _ := strings.Cut(text, "\n"); strings.Count(header, ";") > strings.Count(header, ",") {
		reader.Comma = ';'
	}

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read master data header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := index["fiscal_id"]; !ok {
		return nil, model.NewValidationError("fiscal_id", header, "required", "master data CSV needs a fiscal_id column")
	}

	var out []partner.MasterData
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read master data row: %w", err)
		}
		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		out = append(out, partner.MasterData{
			FiscalID:  get("fiscal_id"),
			Name:      get("name"),
			ErpCode:   get("erp_code"),
			Iban:      get("iban"),
			Bic:       get("bic"),
			VatNumber: get("vat_number"),
		})
	}
	return out, nil
}

func readYAML(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
