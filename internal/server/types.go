package server

import (
	"github.com/rezonia/facturx-engine/internal/export"
	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/partner"
)

// ExportFlatRequest selects a catalog template by name or carries one inline
type ExportFlatRequest struct {
	Invoices     []*model.Invoice       `json:"invoices"`
	TemplateName string                 `json:"template,omitempty"`
	Template     *export.TemplateConfig `json:"templateConfig,omitempty"`
	Tables       export.LookupTables    `json:"tables,omitempty"`
}

// ExportXMLRequest selects a catalog profile by name or carries one inline
type ExportXMLRequest struct {
	Invoices    []*model.Invoice          `json:"invoices"`
	ProfileName string                    `json:"profile,omitempty"`
	Profile     *export.XMLMappingProfile `json:"profileConfig,omitempty"`
}

// IngestResult is the outcome for one ingested invoice
type IngestResult struct {
	Invoice     *model.Invoice       `json:"invoice,omitempty"`
	Format      string               `json:"format"`
	DedupKey    string               `json:"dedupKey,omitempty"`
	Matched     bool                 `json:"matched"`
	Duplicate   bool                 `json:"duplicate,omitempty"`
	Suggestions []partner.MasterData `json:"suggestions,omitempty"`
	Warnings    []string             `json:"warnings,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// IngestResponse is the response for the ingest endpoint
type IngestResponse struct {
	Accepted int            `json:"accepted"`
	Failed   int            `json:"failed"`
	Results  []IngestResult `json:"results"`
}

// ParseResponse is the response for the parse endpoint
type ParseResponse struct {
	Invoices []*model.Invoice `json:"invoices"`
}

// SuggestResponse is the response for partner suggestions
type SuggestResponse struct {
	Suggestions []partner.MasterData `json:"suggestions"`
}

// DedupKeyResponse is the response for the dedup key endpoint
type DedupKeyResponse struct {
	Key  string `json:"key"`
	Seen bool   `json:"seen"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
}
