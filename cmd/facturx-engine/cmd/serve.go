package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx-engine/internal/logger"
	"github.com/rezonia/facturx-engine/internal/processor"
	"github.com/rezonia/facturx-engine/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server exposing the engine.

The API provides endpoints for:
  - POST /api/v1/invoices/compute   - Recompute totals
  - POST /api/v1/invoices/facturx   - Serialize as Factur-X CII XML
  - POST /api/v1/invoices/ingest    - Run the ingestion pipeline
  - POST /api/v1/parse              - Decode JSON or CII input
  - POST /api/v1/export/flat        - Flat template export
  - POST /api/v1/export/xml         - XML profile export
  - GET  /api/v1/partners/match     - Partner lookup by fiscal id
  - GET  /api/v1/partners/suggest   - Partner name suggestions
  - GET  /api/v1/dedup/key          - Dedup key of an invoice
  - GET  /health                    - Health check

Examples:
  # Start server on default port
  facturx-engine serve

  # Start with a config file and master data
  facturx-engine serve --config facturx.yaml --partners partners.csv

  # Start in debug mode
  facturx-engine serve --address :9090 --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("address", ":8080", "Server listen address (env: FACTURX_SERVER_PORT)")
	serveCmd.Flags().Bool("debug", false, "Enable debug mode")
	serveCmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().Duration("write-timeout", 30*time.Second, "HTTP write timeout")

	bindFlags(serveCmd.Flags(), map[string]string{
		"server.port":          "address",
		"server.read_timeout":  "read-timeout",
		"server.write_timeout": "write-timeout",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	catalog, err := loadCatalog()
	if err != nil {
		return err
	}

	debug, _ := cmd.Flags().GetBool("debug")
	cfg := &server.Config{
		Address:      appConfig.Server.Port,
		ReadTimeout:  appConfig.Server.ReadTimeout,
		WriteTimeout: appConfig.Server.WriteTimeout,
		Debug:        debug || appConfig.Server.IsDevelopment(),
	}

	log := logger.WithComponent("server")
	pipeline := processor.NewPipeline(
		processor.WithMatcher(catalog.Matcher()),
		processor.WithWorkers(appConfig.Pipeline.Workers),
		processor.WithRejectDuplicates(appConfig.Pipeline.RejectDuplicate),
		processor.WithLogger(logger.WithComponent("pipeline")),
	)
	srv := server.NewServer(cfg,
		server.WithCatalog(catalog),
		server.WithPipeline(pipeline),
		server.WithLogger(log),
	)

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down server...")
		os.Exit(0)
	}()

	log.Info().
		Int("templates", len(catalog.Templates)).
		Int("profiles", len(catalog.Profiles)).
		Int("tables", len(catalog.Tables)).
		Int("partners", len(catalog.Partners)).
		Msg("catalog loaded")

	return srv.Run()
}
