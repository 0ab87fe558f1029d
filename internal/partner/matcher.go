// Package partner reconciles extracted counterparties with the curated
// partner master data.
package partner

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rezonia/facturx-engine/internal/model"
)

// MaxSuggestions caps the result of Suggest
const MaxSuggestions = 5

// minQueryLength is the shortest normalized name Suggest searches for
const minQueryLength = 3

// MasterData is a canonical trading partner record
type MasterData struct {
	FiscalID  string `json:"fiscalId" yaml:"fiscal_id"`
	Name      string `json:"name" yaml:"name"`
	ErpCode   string `json:"erpCode" yaml:"erp_code"`
	Iban      string `json:"iban,omitempty" yaml:"iban"`
	Bic       string `json:"bic,omitempty" yaml:"bic"`
	VatNumber string `json:"vatNumber,omitempty" yaml:"vat_number"`
}

// legalForms are company form tokens ignored when comparing names
var legalForms = map[string]struct{}{
	"sa": {}, "sas": {}, "sasu": {}, "sarl": {}, "eurl": {}, "sci": {},
	"snc": {}, "scop": {}, "gie": {}, "selarl": {}, "cie": {},
	"ltd": {}, "llc": {}, "inc": {}, "corp": {}, "co": {}, "plc": {},
	"gmbh": {}, "ag": {}, "bv": {}, "nv": {}, "spa": {}, "srl": {},
}

// Matcher looks up partners in a read-only master data list
type Matcher struct {
	records []MasterData
	names   []string
}

// NewMatcher indexes records. The slice is not copied and must not be
// modified while the matcher is in use.
func NewMatcher(records []MasterData) *Matcher {
	names := make([]string, len(records))
	for i := range records {
		names[i] = NormalizeName(records[i].Name)
	}
	return &Matcher{records: records, names: names}
}

// Len returns the number of master records
func (m *Matcher) Len() int {
	return len(m.records)
}

// NormalizeFiscalID removes every whitespace rune
func NormalizeFiscalID(id string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, id)
}

// MatchFiscalID returns the first record whose identifier equals id once
// whitespace is removed on both sides.
func (m *Matcher) MatchFiscalID(id string) (*MasterData, bool) {
	key := NormalizeFiscalID(id)
	if key == "" {
		return nil, false
	}
	for i := range m.records {
		if NormalizeFiscalID(m.records[i].FiscalID) == key {
			return &m.records[i], true
		}
	}
	return nil, false
}

// Enrichment carries the supplier fields a master record provides
type Enrichment struct {
	Record *MasterData
}

// Match resolves the invoice supplier by its SIRET. The second result is
// false when nothing matched, which is not an error.
func (m *Matcher) Match(inv *model.Invoice) (Enrichment, bool) {
	rec, ok := m.MatchFiscalID(inv.SupplierSiret)
	if !ok {
		return Enrichment{}, false
	}
	return Enrichment{Record: rec}, true
}

// Apply copies the non-empty master values onto the invoice. Populated
// invoice fields are never blanked.
func (e Enrichment) Apply(inv *model.Invoice) {
	if e.Record == nil {
		return
	}
	r := e.Record
	setIfPresent(&inv.Supplier, r.Name)
	setIfPresent(&inv.SupplierIban, r.Iban)
	setIfPresent(&inv.SupplierBic, r.Bic)
	setIfPresent(&inv.SupplierVatNumber, r.VatNumber)
	setIfPresent(&inv.SupplierErpCode, r.ErpCode)
	inv.SupplierMatched = true
}

func setIfPresent(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

// Suggest returns up to MaxSuggestions records whose normalized name
// contains, or is contained in, the normalized query. Results keep the
// master data order. Suggestions are never applied automatically.
func (m *Matcher) Suggest(name string) []MasterData {
	query := NormalizeName(name)
	if len(query) < minQueryLength {
		return nil
	}

	var out []MasterData
	for i, candidate := range m.names {
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, query) || strings.Contains(query, candidate) {
			out = append(out, m.records[i])
			if len(out) == MaxSuggestions {
				break
			}
		}
	}
	return out
}

// NormalizeName lower-cases, folds accents, strips punctuation, drops legal
// form tokens and collapses whitespace. Dots and apostrophes are removed so
// "S.A." reads as "sa"; other punctuation separates words.
func NormalizeName(name string) string {
	// transformers keep state, one chain per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		case r == '.' || r == '\'' || r == '’':
			return -1
		}
		return ' '
	}, folded)

	words := strings.Fields(cleaned)
	kept := words[:0]
	for _, w := range words {
		if _, ok := legalForms[w]; ok {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
