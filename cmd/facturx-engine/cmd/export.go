package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx-engine/internal/export"
)

var (
	exportTemplate string
	exportProfile  string
	exportOutput   string
	exportAsIs     bool
)

var exportCmd = &cobra.Command{
	Use:   "export [files...]",
	Short: "Export invoices with a flat template or an XML profile",
	Long: `Export invoices through a configured flat (CSV-like) template or an XML
mapping profile. One row or element is produced per invoice line, or per
invoice when it has no lines.

Templates come from --templates, profiles from --profiles and lookup
tables from --tables (YAML or XLSX).

Examples:
  facturx-engine export invoices/ --template sage --templates templates.yaml --tables tables.xlsx
  facturx-engine export invoice.json --profile erp --profiles profiles.yaml -o export.xml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportTemplate, "template", "t", "", "Flat template name")
	exportCmd.Flags().StringVarP(&exportProfile, "profile", "p", "", "XML mapping profile name")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().BoolVar(&exportAsIs, "as-is", false, "Export totals as given, without recomputing")
}

func runExport(cmd *cobra.Command, args []string) error {
	if (exportTemplate == "") == (exportProfile == "") {
		return fmt.Errorf("exactly one of --template or --profile is required")
	}

	catalog, err := loadCatalog()
	if err != nil {
		return err
	}

	items, err := readInvoices(cmd.Context(), args)
	if err != nil {
		return err
	}
	invoices := invoicesOf(items)
	if !exportAsIs {
		for _, inv := range invoices {
			inv.Recalculate()
		}
	}

	if exportProfile != "" {
		profile, ok := catalog.Profile(exportProfile)
		if !ok {
			return fmt.Errorf("unknown XML profile: %s", exportProfile)
		}
		return writeOutput(cmd.OutOrStdout(), exportOutput, []byte(export.RenderXML(invoices, profile)))
	}

	tpl, ok := catalog.Template(exportTemplate)
	if !ok {
		return fmt.Errorf("unknown export template: %s", exportTemplate)
	}
	for _, path := range tpl.UnknownFields() {
		printVerbose("Warning: template %s references unknown field %s\n", tpl.Name, path)
	}

	out, err := export.Encode(export.RenderFlat(invoices, tpl, catalog.Tables), tpl)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), exportOutput, out)
}
