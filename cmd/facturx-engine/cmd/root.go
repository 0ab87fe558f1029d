package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rezonia/facturx-engine/internal/config"
	"github.com/rezonia/facturx-engine/internal/logger"
)

var (
	version = "1.0.0"

	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string

	v         = config.NewViper()
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "facturx-engine",
	Short: "Reconcile, serialize and export EN16931 invoices",
	Long: `facturx-engine computes VAT breakdowns and totals for invoice records,
serializes them as Factur-X (EN16931 CII) XML and exports them through
configurable flat or XML templates.

Input files are JSON invoice records (one object or an array) or CII XML.

Examples:
  # Recompute totals
  facturx-engine compute invoice.json

  # Produce a Factur-X XML document
  facturx-engine facturx invoice.json -o invoice.xml

  # Export with a configured template
  facturx-engine export invoices/ --template sage --templates templates.yaml

  # Start the HTTP API
  facturx-engine serve --config facturx.yaml`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (env: FACTURX_CONFIG)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	flags.StringVarP(&outputFormat, "format", "f", "json", "Output format (json, table)")
	flags.String("log-level", "info", "Log level (env: FACTURX_LOG_LEVEL)")
	flags.String("log-format", "console", "Log format: console or json (env: FACTURX_LOG_FORMAT)")
	flags.String("templates", "", "Export templates YAML file (env: FACTURX_DATA_TEMPLATES_FILE)")
	flags.String("profiles", "", "XML mapping profiles YAML file (env: FACTURX_DATA_PROFILES_FILE)")
	flags.String("tables", "", "Lookup tables, YAML or XLSX (env: FACTURX_DATA_LOOKUP_TABLES_FILE)")
	flags.String("partners", "", "Partner master data, YAML or CSV (env: FACTURX_DATA_MASTER_DATA_FILE)")

	bindFlags(flags, map[string]string{
		"log.level":               "log-level",
		"log.format":              "log-format",
		"data.templates_file":     "templates",
		"data.profiles_file":      "profiles",
		"data.lookup_tables_file": "tables",
		"data.master_data_file":   "partners",
	})

	// .env values act as environment variables
	cobra.OnInitialize(initEnv)
}

// bindFlags lets flags override config file and environment values
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func initEnv() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if cfgFile == "" {
		cfgFile = os.Getenv(config.EnvPrefix + "_CONFIG")
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	appConfig = cfg

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	logCfg.Output = cfg.Log.Output
	if verbose {
		logCfg.Level = "debug"
	}
	return logger.Setup(logCfg)
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
