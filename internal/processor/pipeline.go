// Package processor runs incoming invoices through normalization,
// reconciliation, partner enrichment and duplicate admission.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rezonia/facturx-engine/internal/dedup"
	"github.com/rezonia/facturx-engine/internal/logger"
	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/parser"
	"github.com/rezonia/facturx-engine/internal/partner"
)

// DefaultWorkers bounds ProcessBatch concurrency when no option is given
const DefaultWorkers = 4

// ErrNoInvoice is returned for a nil invoice
var ErrNoInvoice = errors.New("no invoice data")

// Result contains the outcome of processing one invoice
type Result struct {
	Invoice     *model.Invoice
	Format      model.Format
	DedupKey    string
	Matched     bool
	Suggestions []partner.MasterData
	Warnings    []string
	Error       error
}

// Pipeline orchestrates ingestion of invoices
type Pipeline struct {
	registry         *parser.Registry
	matcher          *partner.Matcher
	seen             *dedup.Set
	workers          int
	rejectDuplicates bool
	log              zerolog.Logger
	now              func() time.Time
}

// PipelineOption configures the pipeline
type PipelineOption func(*Pipeline)

// WithRegistry sets the parser registry used by ProcessBytes
func WithRegistry(r *parser.Registry) PipelineOption {
	return func(p *Pipeline) {
		if r != nil {
			p.registry = r
		}
	}
}

// WithMatcher enables master data enrichment
func WithMatcher(m *partner.Matcher) PipelineOption {
	return func(p *Pipeline) {
		p.matcher = m
	}
}

// WithSeenSet shares a dedup set between pipelines or runs
func WithSeenSet(s *dedup.Set) PipelineOption {
	return func(p *Pipeline) {
		if s != nil {
			p.seen = s
		}
	}
}

// WithWorkers sets the batch concurrency
func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithRejectDuplicates controls whether a duplicate is an error (true) or
// only a warning (false)
func WithRejectDuplicates(reject bool) PipelineOption {
	return func(p *Pipeline) {
		p.rejectDuplicates = reject
	}
}

// WithLogger sets the pipeline logger
func WithLogger(l zerolog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.log = l
	}
}

// WithClock overrides the time source used for ReceivedAt
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline creates a new processing pipeline
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry:         parser.NewRegistry(),
		seen:             dedup.NewSet(),
		workers:          DefaultWorkers,
		rejectDuplicates: true,
		log:              logger.WithComponent("pipeline"),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Seen returns the dedup set the pipeline admits keys into
func (p *Pipeline) Seen() *dedup.Set {
	return p.seen
}

// Process normalizes, reconciles, enriches and admits a single invoice. The
// invoice is modified in place.
func (p *Pipeline) Process(ctx context.Context, inv *model.Invoice) *Result {
	result := p.prepare(ctx, inv)
	if result.Error == nil {
		p.admit(result)
	}
	p.logResult(result)
	return result
}

// ProcessBatch processes invoices concurrently and returns one result per
// invoice in input order. Duplicate admission runs in input order, so the
// first of two duplicates in a batch is the one admitted.
func (p *Pipeline) ProcessBatch(ctx context.Context, invoices []*model.Invoice) []*Result {
	results := make([]*Result, len(invoices))

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for i, inv := range invoices {
		wg.Add(1)
		go func(idx int, inv *model.Invoice) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = p.prepare(ctx, inv)
		}(i, inv)
	}
	wg.Wait()

	for _, r := range results {
		if r.Error == nil {
			p.admit(r)
		}
		p.logResult(r)
	}
	return results
}

// ProcessBytes decodes content with the parser registry and processes every
// invoice it holds. A decoding failure yields a single failed result.
func (p *Pipeline) ProcessBytes(ctx context.Context, content []byte) []*Result {
	adapter, err := p.registry.Detect(content)
	if err != nil {
		return []*Result{{Format: model.FormatUnknown, Error: err}}
	}

	invoices, err := p.registry.ParseAll(ctx, content)
	if err != nil {
		return []*Result{{Format: adapter.Format(), Error: fmt.Errorf("%s parsing failed: %w", adapter.Format(), err)}}
	}

	results := p.ProcessBatch(ctx, invoices)
	for _, r := range results {
		r.Format = adapter.Format()
	}
	return results
}

// ProcessReader reads r fully and calls ProcessBytes
func (p *Pipeline) ProcessReader(ctx context.Context, r io.Reader) []*Result {
	content, err := io.ReadAll(r)
	if err != nil {
		return []*Result{{Format: model.FormatUnknown, Error: model.NewParseError(model.FormatUnknown, "", "failed to read input", err)}}
	}
	return p.ProcessBytes(ctx, content)
}

func (p *Pipeline) prepare(ctx context.Context, inv *model.Invoice) *Result {
	result := &Result{Invoice: inv}

	if err := ctx.Err(); err != nil {
		result.Error = err
		return result
	}
	if inv == nil {
		result.Error = ErrNoInvoice
		return result
	}

	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.ReceivedAt.IsZero() {
		inv.ReceivedAt = p.now().UTC()
	}
	if inv.InvoiceNumber == "" {
		result.Warnings = append(result.Warnings, "missing invoice number")
	}

	for i := range inv.Items {
		it := &inv.Items[i]
		if it.Amount.IsZero() && it.HasPricing() {
			it.SetQuantity(it.Quantity)
			result.Warnings = append(result.Warnings, fmt.Sprintf("item %d: amount computed from quantity and unit price", i+1))
		}
	}

	declaredExcl, declaredVat, declaredIncl := inv.AmountExclVat, inv.TotalVat, inv.AmountInclVat
	inv.Recalculate()
	if !declaredExcl.IsZero() && !declaredExcl.Equal(inv.AmountExclVat) {
		result.Warnings = append(result.Warnings, fmt.Sprintf("declared amount excl. VAT %s differs from computed %s", declaredExcl.StringFixed(2), inv.AmountExclVat.StringFixed(2)))
	}
	if !declaredVat.IsZero() && !declaredVat.Equal(inv.TotalVat) {
		result.Warnings = append(result.Warnings, fmt.Sprintf("declared VAT %s differs from computed %s", declaredVat.StringFixed(2), inv.TotalVat.StringFixed(2)))
	}
	if !declaredIncl.IsZero() && !declaredIncl.Equal(inv.AmountInclVat) {
		result.Warnings = append(result.Warnings, fmt.Sprintf("declared amount incl. VAT %s differs from computed %s", declaredIncl.StringFixed(2), inv.AmountInclVat.StringFixed(2)))
	}

	if p.matcher != nil {
		if enrichment, ok := p.matcher.Match(inv); ok {
			enrichment.Apply(inv)
			result.Matched = true
		} else {
			result.Suggestions = p.matcher.Suggest(inv.Supplier)
		}
	}

	result.DedupKey = dedup.InvoiceKey(inv)
	return result
}

func (p *Pipeline) admit(result *Result) {
	inv := result.Invoice
	if inv.InvoiceNumber == "" {
		return
	}
	if p.seen.Admit(result.DedupKey) {
		return
	}
	if p.rejectDuplicates {
		result.Error = fmt.Errorf("invoice %s from %s: %w", inv.InvoiceNumber, inv.Supplier, dedup.ErrDuplicate)
		return
	}
	result.Warnings = append(result.Warnings, "duplicate invoice "+result.DedupKey)
}

func (p *Pipeline) logResult(r *Result) {
	if r.Error != nil {
		p.log.Warn().Err(r.Error).Str("dedup_key", r.DedupKey).Msg("invoice rejected")
		return
	}
	p.log.Info().
		Str("invoice_id", r.Invoice.ID).
		Str("invoice_number", r.Invoice.InvoiceNumber).
		Str("dedup_key", r.DedupKey).
		Bool("matched", r.Matched).
		Int("warnings", len(r.Warnings)).
		Msg("invoice processed")
}
