package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var computeOutput string

var computeCmd = &cobra.Command{
	Use:   "compute [files...]",
	Short: "Recompute VAT breakdowns and totals",
	Long: `Recompute the VAT breakdown and the derived totals of every invoice
from its line items, document level charge and discount, prepaid amount
and rounding amount.

Use "-" to read from standard input.

Examples:
  facturx-engine compute invoice.json
  facturx-engine compute invoices/ -f table
  cat invoice.json | facturx-engine compute - -o computed.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompute,
}

func init() {
	rootCmd.AddCommand(computeCmd)

	computeCmd.Flags().StringVarP(&computeOutput, "output", "o", "", "Output file (default: stdout)")
}

func runCompute(cmd *cobra.Command, args []string) error {
	items, err := readInvoices(cmd.Context(), args)
	if err != nil {
		return err
	}

	for _, it := range items {
		it.Invoice.Recalculate()
	}

	switch outputFormat {
	case "json":
		data, err := json.MarshalIndent(invoicesOf(items), "", "  ")
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), computeOutput, append(data, '\n'))
	case "table":
		return computeTable(cmd.OutOrStdout(), items)
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

func computeTable(w io.Writer, items []sourceInvoice) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tNUMBER\tSUPPLIER\tEXCL. VAT\tVAT\tINCL. VAT\tDUE")
	fmt.Fprintln(tw, "----\t------\t--------\t---------\t---\t---------\t---")

	for _, it := range items {
		inv := it.Invoice
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			it.File,
			inv.InvoiceNumber,
			inv.Supplier,
			inv.AmountExclVat.StringFixed(2),
			inv.TotalVat.StringFixed(2),
			inv.AmountInclVat.StringFixed(2),
			inv.AmountDueForPayment.StringFixed(2),
		)
	}

	return tw.Flush()
}
