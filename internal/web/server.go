package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/monolithe-geofix/internal/config"
	"github.com/monolithe-geofix/internal/web/handlers"
	"github.com/monolithe-geofix/internal/web/middleware"
)

// Dependencies are the collaborators the ops API serves from.
type Dependencies struct {
	Store    handlers.ProviderStore
	Resolver handlers.AddressResolver
	// Gatherer backs /metrics; prometheus.DefaultGatherer when nil.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Server represents the web server
type Server struct {
	config     config.ServerConfig
	deps       Dependencies
	httpServer *http.Server
	router     *mux.Router
}

// NewServer creates a new web server instance
func NewServer(cfg config.ServerConfig, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	server := &Server{config: cfg, deps: deps}
	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      server.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	log := s.deps.Logger

	apiHandler := &handlers.APIHandler{Store: s.deps.Store, Logger: log}
	addressHandler := &handlers.AddressHandler{Resolver: s.deps.Resolver}
	exportHandler := &handlers.ExportHandler{Store: s.deps.Store, Logger: log}

	s.router.HandleFunc("/healthz", apiHandler.GetHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/address/clean", addressHandler.Clean).Methods(http.MethodGet)
	api.HandleFunc("/address/resolve", addressHandler.Resolve).Methods(http.MethodGet)
	api.HandleFunc("/providers/missing", exportHandler.ListMissing).Methods(http.MethodGet)
	api.HandleFunc("/stats", apiHandler.GetStats).Methods(http.MethodGet)

	s.router.Use(middleware.RequestLogging(log))
	api.Use(middleware.Authentication(s.config.APIKey))
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start listens until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.deps.Logger.Info("http server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains connections within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
