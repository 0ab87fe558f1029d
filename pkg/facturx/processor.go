package facturx

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/rezonia/facturx-engine/internal/dedup"
	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/partner"
	"github.com/rezonia/facturx-engine/internal/processor"
)

// ErrDuplicate is wrapped by results whose dedup key was already admitted
var ErrDuplicate = dedup.ErrDuplicate

// PipelineOptions configures a Processor
type PipelineOptions struct {
	MasterData      []MasterData
	KnownKeys       []string
	Workers         int
	AllowDuplicates bool
	Logger          *zerolog.Logger
}

// DefaultPipelineOptions returns the options used by NewDefaultProcessor
func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{Workers: processor.DefaultWorkers}
}

// IngestResult is the outcome for one invoice
type IngestResult struct {
	Invoice     *Invoice
	Format      Format
	DedupKey    string
	Matched     bool
	Suggestions []MasterData
	Warnings    []string
	Err         error
}

// Processor ingests invoices and remembers admitted dedup keys across calls
type Processor struct {
	pipeline *processor.Pipeline
	options  PipelineOptions
}

// NewProcessor creates a new invoice processor with the given options
func NewProcessor(opts PipelineOptions) *Processor {
	pipelineOpts := []processor.PipelineOption{
		processor.WithSeenSet(dedup.NewSet(opts.KnownKeys...)),
		processor.WithWorkers(opts.Workers),
		processor.WithRejectDuplicates(!opts.AllowDuplicates),
	}
	if len(opts.MasterData) > 0 {
		pipelineOpts = append(pipelineOpts, processor.WithMatcher(partner.NewMatcher(opts.MasterData)))
	}
	if opts.Logger != nil {
		pipelineOpts = append(pipelineOpts, processor.WithLogger(*opts.Logger))
	}

	return &Processor{
		pipeline: processor.NewPipeline(pipelineOpts...),
		options:  opts,
	}
}

// NewDefaultProcessor creates a processor with default options
func NewDefaultProcessor() *Processor {
	return NewProcessor(DefaultPipelineOptions())
}

// Process decodes r and ingests every invoice it holds
func (p *Processor) Process(ctx context.Context, r io.Reader) ([]*IngestResult, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewParseError(model.FormatUnknown, "", "failed to read input", err)
	}

	results := p.pipeline.ProcessBytes(ctx, content)
	if len(results) == 1 && results[0].Invoice == nil && results[0].Error != nil {
		return nil, results[0].Error
	}
	return convertResults(results), nil
}

// ProcessInvoices ingests already decoded invoices, in order
func (p *Processor) ProcessInvoices(ctx context.Context, invoices []*Invoice) []*IngestResult {
	return convertResults(p.pipeline.ProcessBatch(ctx, invoices))
}

// Seen reports whether a dedup key has been admitted
func (p *Processor) Seen(key string) bool {
	return p.pipeline.Seen().Contains(key)
}

func convertResults(results []*processor.Result) []*IngestResult {
	out := make([]*IngestResult, len(results))
	for i, r := range results {
		out[i] = &IngestResult{
			Invoice:     r.Invoice,
			Format:      r.Format,
			DedupKey:    r.DedupKey,
			Matched:     r.Matched,
			Suggestions: r.Suggestions,
			Warnings:    r.Warnings,
			Err:         r.Error,
		}
	}
	return out
}
