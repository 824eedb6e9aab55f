// Package server provides the HTTP server and routing for RiskWatch.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/clearline/riskwatch/internal/database"
	"github.com/clearline/riskwatch/internal/events"
	concentrationhandlers "github.com/clearline/riskwatch/internal/modules/concentration/handlers"
	"github.com/clearline/riskwatch/internal/modules/findings"
	findingshandlers "github.com/clearline/riskwatch/internal/modules/findings/handlers"
	"github.com/clearline/riskwatch/internal/modules/portfolio"
	portfoliohandlers "github.com/clearline/riskwatch/internal/modules/portfolio/handlers"
	riskhandlers "github.com/clearline/riskwatch/internal/modules/risk/handlers"
	"github.com/clearline/riskwatch/internal/modules/rules"
	ruleshandlers "github.com/clearline/riskwatch/internal/modules/rules/handlers"
	stresshandlers "github.com/clearline/riskwatch/internal/modules/stress/handlers"
	"github.com/clearline/riskwatch/internal/reliability"
	"github.com/clearline/riskwatch/internal/scanner"
)

// Config holds server configuration
type Config struct {
	Log     zerolog.Logger
	Port    int
	DevMode bool
	DataDir string

	DB      *database.DB
	CacheDB *database.DB

	Portfolios *portfolio.Repository
	Holdings   *portfolio.HoldingRepository
	Rules      *rules.Repository
	Findings   *findings.Repository

	Scanner *scanner.Scanner
	Cache   *scanner.SnapshotCache
	Bus     *events.Bus
	Backup  *reliability.BackupService // nil when backups are not configured
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	systemHandlers := NewSystemHandlers(s.log, s.cfg.DataDir, []*database.DB{s.cfg.DB, s.cfg.CacheDB})
	dashboardHandlers := NewDashboardHandlers(s.cfg.Scanner, s.cfg.Cache, s.cfg.Backup, s.log)
	liveEvents := NewLiveEventsHandler(s.cfg.Bus, s.log)

	s.router.Get("/health", systemHandlers.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/events/live", liveEvents.ServeHTTP)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", systemHandlers.HandleDatabaseStats)
			r.Get("/disk", systemHandlers.HandleDiskUsage)
		})

		r.Get("/dashboard", dashboardHandlers.HandleDashboard)
		r.Post("/scan", dashboardHandlers.HandleTriggerScan)

		r.Route("/backups", func(r chi.Router) {
			r.Get("/", dashboardHandlers.HandleListBackups)
			r.Post("/", dashboardHandlers.HandleTriggerBackup)
		})

		portfoliohandlers.NewHandler(s.cfg.Portfolios, s.cfg.Holdings, s.log).RegisterRoutes(r)
		concentrationhandlers.NewHandler(s.cfg.Portfolios, s.cfg.Holdings, s.cfg.Rules, s.log).RegisterRoutes(r)
		riskhandlers.NewHandler(s.cfg.Portfolios, s.cfg.Findings, s.log).RegisterRoutes(r)
		stresshandlers.NewHandler(s.cfg.Portfolios, s.cfg.Holdings, s.cfg.Rules, s.cfg.Findings, s.log).RegisterRoutes(r)
		ruleshandlers.NewHandler(s.cfg.Rules, s.log).RegisterRoutes(r)
		findingshandlers.NewHandler(s.cfg.Findings, s.log).RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
