// Package server provides the HTTP API for the backtesting engine: starting
// a backtest, streaming its progress over Server-Sent Events, fetching its
// result, and exposing the factor catalogue and tradable universe as
// read-only reference data.
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

	"github.com/aristath/kr-backtest/internal/config"
	"github.com/aristath/kr-backtest/internal/domain"
	"github.com/aristath/kr-backtest/internal/modules/backtest"
	"github.com/aristath/kr-backtest/internal/modules/progress"
)

// Config holds everything the HTTP server needs to wire its routes.
type Config struct {
	Log        zerolog.Logger
	Config     *config.Config
	Engine     *backtest.Engine
	Repository *backtest.Repository
	Progress   *progress.Manager
	PriceStore domain.PriceStore
	Port       int
	DevMode    bool
}

// Server is the chi-routed HTTP server fronting the engine.
type Server struct {
	router     *chi.Mux
	server     *http.Server
	log        zerolog.Logger
	cfg        *config.Config
	engine     *backtest.Engine
	repo       *backtest.Repository
	progress   *progress.Manager
	priceStore domain.PriceStore
}

// New builds a Server with its middleware and routes installed, but does not
// start listening; call Start for that.
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		cfg:        cfg.Config,
		engine:     cfg.Engine,
		repo:       cfg.Repository,
		progress:   cfg.Progress,
		priceStore: cfg.PriceStore,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams hold the connection open indefinitely
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(120 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		r.Get("/factors", s.handleFactorCatalogue)
		r.Get("/universe", s.handleUniverse)

		r.Route("/backtests", func(r chi.Router) {
			r.Post("/", s.handleStartBacktest)
			r.Get("/{sessionID}", s.handleGetResult)
			r.Get("/{sessionID}/stream", s.handleStream)
		})
	})
}

// Start begins serving HTTP requests; it blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// (including open SSE streams) to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

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
			Msg("http request")
	})
}
