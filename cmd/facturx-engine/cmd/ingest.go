package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx-engine/internal/dedup"
	"github.com/rezonia/facturx-engine/internal/logger"
	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/partner"
	"github.com/rezonia/facturx-engine/internal/processor"
)

var (
	ingestOutput     string
	ingestKnownKeys  []string
	ingestAllowDupes bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Reconcile, enrich and deduplicate invoices",
	Long: `Run invoices through the ingestion pipeline:

  1. assign an id and reception time when missing
  2. fill missing line amounts and recompute totals
  3. enrich the supplier from the master data (--partners)
  4. reject invoices whose dedup key was already admitted

Examples:
  facturx-engine ingest invoices/ --partners partners.csv
  facturx-engine ingest batch.json --known-key inv001_acmecorp -f table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVarP(&ingestOutput, "output", "o", "", "Output file (default: stdout)")
	ingestCmd.Flags().StringSliceVar(&ingestKnownKeys, "known-key", nil, "Dedup keys admitted before this run")
	ingestCmd.Flags().BoolVar(&ingestAllowDupes, "allow-duplicates", false, "Report duplicates as warnings instead of errors")
}

// IngestResult holds the outcome for a single invoice
type IngestResult struct {
	File        string               `json:"file"`
	Invoice     *model.Invoice       `json:"invoice,omitempty"`
	DedupKey    string               `json:"dedupKey,omitempty"`
	Matched     bool                 `json:"matched"`
	Suggestions []partner.MasterData `json:"suggestions,omitempty"`
	Warnings    []string             `json:"warnings,omitempty"`
	Error       string               `json:"error,omitempty"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	catalog, err := loadCatalog()
	if err != nil {
		return err
	}

	items, err := readInvoices(cmd.Context(), args)
	if err != nil {
		return err
	}

	opts := []processor.PipelineOption{
		processor.WithMatcher(catalog.Matcher()),
		processor.WithSeenSet(dedup.NewSet(ingestKnownKeys...)),
		processor.WithRejectDuplicates(!ingestAllowDupes),
		processor.WithLogger(logger.WithComponent("ingest")),
	}
	if appConfig != nil {
		opts = append(opts, processor.WithWorkers(appConfig.Pipeline.Workers))
		if !appConfig.Pipeline.RejectDuplicate {
			opts = append(opts, processor.WithRejectDuplicates(false))
		}
	}
	pipeline := processor.NewPipeline(opts...)

	results := pipeline.ProcessBatch(cmd.Context(), invoicesOf(items))

	out := make([]*IngestResult, len(results))
	failed := 0
	for i, r := range results {
		out[i] = &IngestResult{
			File:        items[i].File,
			Invoice:     r.Invoice,
			DedupKey:    r.DedupKey,
			Matched:     r.Matched,
			Suggestions: r.Suggestions,
			Warnings:    r.Warnings,
		}
		if r.Error != nil {
			out[i].Error = r.Error.Error()
			failed++
		}
	}
	printVerbose("Ingested %d invoices, %d rejected\n", len(out)-failed, failed)

	switch outputFormat {
	case "json":
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), ingestOutput, append(data, '\n'))
	case "table":
		return ingestTable(cmd.OutOrStdout(), out)
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

func ingestTable(w io.Writer, results []*IngestResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tNUMBER\tSUPPLIER\tKEY\tMATCHED\tTOTAL\tSTATUS")
	fmt.Fprintln(tw, "----\t------\t--------\t---\t-------\t-----\t------")

	for _, r := range results {
		status := "ok"
		if r.Error != "" {
			status = "ERROR: " + r.Error
		} else if len(r.Warnings) > 0 {
			status = fmt.Sprintf("%d warnings", len(r.Warnings))
		}

		number, supplier, total := "", "", ""
		if r.Invoice != nil {
			number = r.Invoice.InvoiceNumber
			supplier = r.Invoice.Supplier
			total = r.Invoice.AmountInclVat.StringFixed(2)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n", r.File, number, supplier, r.DedupKey, r.Matched, total, status)
	}

	return tw.Flush()
}
