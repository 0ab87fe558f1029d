package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx-engine/internal/dedup"
	"github.com/rezonia/facturx-engine/internal/partner"
)

var (
	matchFiscalID      string
	matchName          string
	matchInvoiceNumber string
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Look up a partner in the master data",
	Long: `Look up a partner in the master data by fiscal identifier (exact match
after whitespace removal) or list name suggestions.

With --invoice-number and --name the dedup key of that invoice is printed
as well.

Examples:
  facturx-engine match --partners partners.csv --fiscal-id "123 456 789 00012"
  facturx-engine match --partners partners.yaml --name "Dupont"`,
	Args: cobra.NoArgs,
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringVar(&matchFiscalID, "fiscal-id", "", "Fiscal identifier (SIRET)")
	matchCmd.Flags().StringVar(&matchName, "name", "", "Partner name for suggestions")
	matchCmd.Flags().StringVar(&matchInvoiceNumber, "invoice-number", "", "Invoice number for the dedup key")
}

// MatchResult is printed by the match command
type MatchResult struct {
	Match       *partner.MasterData  `json:"match,omitempty"`
	Suggestions []partner.MasterData `json:"suggestions,omitempty"`
	DedupKey    string               `json:"dedupKey,omitempty"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	if matchFiscalID == "" && matchName == "" {
		return fmt.Errorf("--fiscal-id or --name is required")
	}

	catalog, err := loadCatalog()
	if err != nil {
		return err
	}
	matcher := catalog.Matcher()
	printVerbose("Loaded %d partners\n", matcher.Len())

	var result MatchResult
	if matchFiscalID != "" {
		if rec, ok := matcher.MatchFiscalID(matchFiscalID); ok {
			result.Match = rec
		}
	}
	if result.Match == nil && matchName != "" {
		result.Suggestions = matcher.Suggest(matchName)
	}
	if matchInvoiceNumber != "" {
		supplier := matchName
		if result.Match != nil {
			supplier = result.Match.Name
		}
		result.DedupKey = dedup.Key(supplier, matchInvoiceNumber)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
