package export

import (
	"regexp"
	"strings"

	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/xmlwriter"
)

// Default tags of a profile that leaves them blank
const (
	DefaultRootTag = "invoices"
	DefaultItemTag = "invoice"
)

// FieldMapping maps a registry path to an output tag
type FieldMapping struct {
	Field   string `json:"field" yaml:"field"`
	Tag     string `json:"tag" yaml:"tag"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// XMLMappingProfile describes a custom XML export
type XMLMappingProfile struct {
	Name     string         `json:"name" yaml:"name"`
	RootTag  string         `json:"rootTag" yaml:"root_tag"`
	ItemTag  string         `json:"itemTag" yaml:"item_tag"`
	Mappings []FieldMapping `json:"mappings" yaml:"mappings"`
}

var tagName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*(:[A-Za-z_][A-Za-z0-9_.\-]*)?$`)

// Validate checks that every tag is a well-formed XML name
func (p *XMLMappingProfile) Validate() error {
	for _, tag := range []string{p.RootTag, p.ItemTag} {
		if tag != "" && !tagName.MatchString(tag) {
			return model.NewValidationError("tag", tag, "xml-name", "invalid element name")
		}
	}
	for _, m := range p.Mappings {
		if !tagName.MatchString(m.Tag) {
			return model.NewValidationError("mappings.tag", m.Tag, "xml-name", "invalid element name")
		}
	}
	return nil
}

// EnabledMappings returns the enabled mappings in order
func (p *XMLMappingProfile) EnabledMappings() []FieldMapping {
	var out []FieldMapping
	for _, m := range p.Mappings {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}

// RenderXML emits one root element holding one item element per
// (invoice, item), or per invoice when it has no items. Each item element
// carries only the enabled mappings, in profile order. The output is always
// well-formed: invalid root or item tags fall back to the defaults and
// mappings with an invalid tag are skipped.
func RenderXML(invoices []*model.Invoice, profile *XMLMappingProfile) string {
	rootTag, itemTag := DefaultRootTag, DefaultItemTag
	var mappings []FieldMapping
	if profile != nil {
		rootTag = tagOr(profile.RootTag, DefaultRootTag)
		itemTag = tagOr(profile.ItemTag, DefaultItemTag)
		for _, m := range profile.EnabledMappings() {
			if tagName.MatchString(m.Tag) {
				mappings = append(mappings, m)
			}
		}
	}

	root := xmlwriter.New(rootTag)
	emit := func(ctx *RowContext) {
		el := root.Child(itemTag)
		for _, m := range mappings {
			el.Text(m.Tag, ctx.Resolve(m.Field).Format())
		}
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

	return xmlwriter.Render(root, xmlwriter.DefaultOptions())
}

func tagOr(tag, fallback string) string {
	tag = strings.TrimSpace(tag)
	if !tagName.MatchString(tag) {
		return fallback
	}
	return tag
}
