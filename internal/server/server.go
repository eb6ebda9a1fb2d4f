// Package server exposes the orchestration substrate's HTTP and
// WebSocket surface (spec §6): project CRUD, chat completions, RAG
// query/ingestion, dataset management, task status and event log
// retrieval, plus the voice chat WebSocket.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/llamafarm/llamafarm-core/internal/config"
	"github.com/llamafarm/llamafarm-core/internal/eventlog"
	"github.com/llamafarm/llamafarm-core/internal/modelcache"
	"github.com/llamafarm/llamafarm-core/internal/modeladapter"
	"github.com/llamafarm/llamafarm-core/internal/provider"
	"github.com/llamafarm/llamafarm-core/internal/session"
	"github.com/llamafarm/llamafarm-core/internal/storage"
	"github.com/llamafarm/llamafarm-core/internal/voice"
)

// Config holds server configuration.
type Config struct {
	Port              int
	EnableCORS        bool
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ModelUnloadTimeout time.Duration
	CleanupInterval   time.Duration
}

// DefaultConfig returns default server configuration, the spec §6 env
// var defaults (MODEL_UNLOAD_TIMEOUT=300s, CLEANUP_CHECK_INTERVAL=60s).
func DefaultConfig() *Config {
	return &Config{
		Port:               8080,
		EnableCORS:         true,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       0, // no write timeout: chat completions may stream indefinitely
		ModelUnloadTimeout: 300 * time.Second,
		CleanupInterval:    60 * time.Second,
	}
}

// Server is the HTTP/WebSocket server for the orchestration substrate.
type Server struct {
	config  *Config
	router  *chi.Mux
	httpSrv *http.Server

	paths       *config.Paths
	fs          *storage.Storage
	sessions    *session.Manager
	events      *eventlog.Store
	providerReg *provider.Registry
	models      *modeladapter.Manager
	cache       *modelcache.Cache
	vision      *voice.VisionSessionStore

	projects *projectRegistry
}

// New builds a Server rooted at paths.DataRoot, wiring the shared
// process-wide collaborators (model cache, provider registry, session
// manager, event log) that every project handler draws on.
func New(cfg *Config, paths *config.Paths, providerReg *provider.Registry) *Server {
	fs := storage.New(paths.DataRoot)
	cache := modelcache.New(
		modelcache.WithUnloadTimeout(cfg.ModelUnloadTimeout),
		modelcache.WithCleanupInterval(cfg.CleanupInterval),
	)

	models := modeladapter.NewManager(cache, providerReg)

	s := &Server{
		config:      cfg,
		router:      chi.NewRouter(),
		paths:       paths,
		fs:          fs,
		sessions:    session.New(fs),
		events:      eventlog.New(fs),
		providerReg: providerReg,
		models:      models,
		cache:       cache,
		vision:      voice.NewVisionSessionStore(),
		projects:    newProjectRegistry(paths, models),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Session-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "X-Session-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server and releases the shared
// model cache (unloading every cached backend).
func (s *Server) Shutdown(ctx context.Context) error {
	s.cache.Close()
	s.projects.closeAll()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the Chi router, for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
