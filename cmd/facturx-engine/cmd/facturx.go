package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx-engine/internal/facturx"
	"github.com/rezonia/facturx-engine/internal/model"
)

var (
	facturxOutput        string
	facturxOutputDir     string
	facturxNoDeclaration bool
	facturxAsIs          bool
)

var facturxCmd = &cobra.Command{
	Use:   "facturx [files...]",
	Short: "Serialize invoices as Factur-X CII XML",
	Long: `Serialize invoices as EN16931 Cross Industry Invoice XML, the XML part
of a Factur-X document.

Totals are recomputed before serialization unless --as-is is given. A
single invoice is written to stdout or --output; several invoices need
--output-dir and are written one file per invoice.

Examples:
  facturx-engine facturx invoice.json
  facturx-engine facturx invoice.json -o factur-x.xml
  facturx-engine facturx invoices/ --output-dir out/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFacturX,
}

func init() {
	rootCmd.AddCommand(facturxCmd)

	facturxCmd.Flags().StringVarP(&facturxOutput, "output", "o", "", "Output file (default: stdout)")
	facturxCmd.Flags().StringVar(&facturxOutputDir, "output-dir", "", "Directory for one XML file per invoice")
	facturxCmd.Flags().BoolVar(&facturxNoDeclaration, "no-declaration", false, "Omit the XML declaration")
	facturxCmd.Flags().BoolVar(&facturxAsIs, "as-is", false, "Serialize totals as given, without recomputing")
}

func runFacturX(cmd *cobra.Command, args []string) error {
	items, err := readInvoices(cmd.Context(), args)
	if err != nil {
		return err
	}
	if len(items) > 1 && facturxOutputDir == "" {
		return fmt.Errorf("%d invoices found: use --output-dir", len(items))
	}

	var opts []facturx.Option
	if facturxNoDeclaration {
		opts = append(opts, facturx.WithoutDeclaration())
	}

	if facturxOutputDir != "" {
		if err := os.MkdirAll(facturxOutputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	for i, it := range items {
		if !facturxAsIs {
			it.Invoice.Recalculate()
		}
		doc := []byte(facturx.Render(it.Invoice, opts...))

		target := facturxOutput
		if facturxOutputDir != "" {
			target = filepath.Join(facturxOutputDir, outputName(it.Invoice, i))
		}
		if err := writeOutput(cmd.OutOrStdout(), target, doc); err != nil {
			return err
		}
	}
	return nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// outputName derives a file name from the invoice number, falling back to
// the position in the input
func outputName(inv *model.Invoice, i int) string {
	name := unsafeName.ReplaceAllString(inv.InvoiceNumber, "_")
	if name == "" || name == "_" {
		name = fmt.Sprintf("invoice-%d", i+1)
	}
	return name + ".xml"
}
