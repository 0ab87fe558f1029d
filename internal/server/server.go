// Package server exposes the engine over a gin HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rezonia/facturx-engine/internal/config"
	"github.com/rezonia/facturx-engine/internal/dedup"
	"github.com/rezonia/facturx-engine/internal/export"
	"github.com/rezonia/facturx-engine/internal/facturx"
	"github.com/rezonia/facturx-engine/internal/logger"
	"github.com/rezonia/facturx-engine/internal/model"
	"github.com/rezonia/facturx-engine/internal/parser"
	"github.com/rezonia/facturx-engine/internal/partner"
	"github.com/rezonia/facturx-engine/internal/processor"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Server represents the HTTP API server
type Server struct {
	config   *Config
	router   *gin.Engine
	catalog  *config.Catalog
	matcher  *partner.Matcher
	pipeline *processor.Pipeline
	registry *parser.Registry
	log      zerolog.Logger
}

// Option configures the server
type Option func(*Server)

// WithCatalog sets the templates, profiles, lookup tables and master data
func WithCatalog(c *config.Catalog) Option {
	return func(s *Server) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithPipeline sets the ingestion pipeline
func WithPipeline(p *processor.Pipeline) Option {
	return func(s *Server) {
		s.pipeline = p
	}
}

// WithLogger sets the server logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// NewServer creates a new API server
func NewServer(cfg *Config, opts ...Option) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:   cfg,
		router:   gin.New(),
		catalog:  &config.Catalog{},
		registry: parser.NewRegistry(),
		log:      logger.WithComponent("server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.matcher = s.catalog.Matcher()
	if s.pipeline == nil {
		s.pipeline = processor.NewPipeline(
			processor.WithRegistry(s.registry),
			processor.WithMatcher(s.matcher),
			processor.WithLogger(s.log),
		)
	}

	s.router.Use(gin.Recovery(), s.requestID())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/invoices/compute", s.handleCompute)
		v1.POST("/invoices/facturx", s.handleFacturX)
		v1.POST("/invoices/ingest", s.handleIngest)

		v1.POST("/parse", s.handleParse)

		v1.POST("/export/flat", s.handleExportFlat)
		v1.POST("/export/xml", s.handleExportXML)

		v1.GET("/partners/match", s.handlePartnerMatch)
		v1.GET("/partners/suggest", s.handlePartnerSuggest)

		v1.GET("/dedup/key", s.handleDedupKey)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.log.Info().Str("address", s.config.Address).Msg("listening")
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)

		start := time.Now()
		c.Next()

		if !s.config.Debug {
			return
		}
		s.log.Debug().
			Str(requestIDKey, id).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCompute(c *gin.Context) {
	var inv model.Invoice
	if err := c.ShouldBindJSON(&inv); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid invoice JSON", Details: err.Error()})
		return
	}

	inv.Recalculate()
	c.JSON(http.StatusOK, &inv)
}

func (s *Server) handleFacturX(c *gin.Context) {
	var inv model.Invoice
	if err := c.ShouldBindJSON(&inv); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid invoice JSON", Details: err.Error()})
		return
	}

	if c.DefaultQuery("recalculate", "true") != "false" {
		inv.Recalculate()
	}
	var opts []facturx.Option
	if c.Query("declaration") == "false" {
		opts = append(opts, facturx.WithoutDeclaration())
	}

	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(facturx.Render(&inv, opts...)))
}

func (s *Server) handleIngest(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	results := s.pipeline.ProcessBytes(ctx, body)

	resp := IngestResponse{Results: make([]IngestResult, 0, len(results))}
	for _, r := range results {
		item := IngestResult{
			Invoice:     r.Invoice,
			Format:      string(r.Format),
			DedupKey:    r.DedupKey,
			Matched:     r.Matched,
			Suggestions: r.Suggestions,
			Warnings:    r.Warnings,
		}
		if r.Error != nil {
			item.Error = r.Error.Error()
			item.Duplicate = errors.Is(r.Error, dedup.ErrDuplicate)
			resp.Failed++
		} else {
			resp.Accepted++
		}
		resp.Results = append(resp.Results, item)
	}

	status := http.StatusOK
	if resp.Accepted == 0 {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, resp)
}

func (s *Server) handleParse(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	invoices, err := s.registry.ParseAll(c.Request.Context(), body)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "parsing failed", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ParseResponse{Invoices: invoices})
}

func (s *Server) handleExportFlat(c *gin.Context) {
	var req ExportFlatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid export request", Details: err.Error()})
		return
	}

	tpl, err := s.resolveTemplate(req)
	if err != nil {
		writeConfigError(c, err)
		return
	}

	tables := req.Tables
	if tables == nil {
		tables = s.catalog.Tables
	}

	out, err := export.Encode(export.RenderFlat(req.Invoices, tpl, tables), tpl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "encoding failed", Details: err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/csv; charset="+strings.ToLower(tpl.Encoding), out)
}

func (s *Server) resolveTemplate(req ExportFlatRequest) (*export.Template, error) {
	if req.Template != nil {
		return export.CompileTemplate(*req.Template)
	}
	if tpl, ok := s.catalog.Template(req.TemplateName); ok {
		return tpl, nil
	}
	return nil, model.NewValidationError("template", req.TemplateName, "exists", "unknown export template")
}

func (s *Server) handleExportXML(c *gin.Context) {
	var req ExportXMLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid export request", Details: err.Error()})
		return
	}

	profile := req.Profile
	if profile == nil {
		p, ok := s.catalog.Profile(req.ProfileName)
		if !ok {
			writeConfigError(c, model.NewValidationError("profile", req.ProfileName, "exists", "unknown XML profile"))
			return
		}
		profile = p
	}
	if err := profile.Validate(); err != nil {
		writeConfigError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(export.RenderXML(req.Invoices, profile)))
}

func (s *Server) handlePartnerMatch(c *gin.Context) {
	id := c.Query("fiscalId")
	if strings.TrimSpace(id) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "fiscalId is required"})
		return
	}

	rec, ok := s.matcher.MatchFiscalID(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no partner with this fiscal id"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handlePartnerSuggest(c *gin.Context) {
	suggestions := s.matcher.Suggest(c.Query("name"))
	if suggestions == nil {
		suggestions = []partner.MasterData{}
	}
	c.JSON(http.StatusOK, SuggestResponse{Suggestions: suggestions})
}

func (s *Server) handleDedupKey(c *gin.Context) {
	key := dedup.Key(c.Query("supplier"), c.Query("invoiceNumber"))
	c.JSON(http.StatusOK, DedupKeyResponse{
		Key:  key,
		Seen: s.pipeline.Seen().Contains(key),
	})
}

// Helper functions

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return nil, false
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return nil, false
	}
	return body, true
}

func writeConfigError(c *gin.Context, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid configuration", Details: verr.Error(), Field: verr.Field})
		return
	}
	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid configuration", Details: err.Error()})
}
