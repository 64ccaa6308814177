package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dataveil/rgpd-gateway/internal/config"
	"github.com/dataveil/rgpd-gateway/internal/gateway"
	"github.com/dataveil/rgpd-gateway/internal/logger"
)

// Server is the HTTP facade in front of the gateway core. Every
// request to /v1/invoke passes the mandatory brackets in order:
// use-case policy, consent check, PII redaction, provider dispatch,
// PII restoration.
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	gateway  *gateway.Gateway
	redactor *gateway.Redactor
	hub      *Hub
	limiter  *tenantLimiter
	router   *mux.Router
	server   *http.Server
}

// New creates a new gateway server instance.
func New(cfg *config.Config, log *logger.Logger, gw *gateway.Gateway, redactor *gateway.Redactor, hub *Hub) *Server {
	s := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		gateway:  gw,
		redactor: redactor,
		hub:      hub,
		limiter:  newTenantLimiter(cfg.RateLimit),
		router:   mux.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")
	s.router.HandleFunc("/dashboard", s.handleDashboard).Methods("GET")

	if s.config.WebSocket.Enabled && s.hub != nil {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/invoke", s.handleInvoke).Methods("POST")
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting rgpd gateway server")
	if s.hub != nil {
		go s.hub.Run()
	}
	return s.server.ListenAndServe()
}

// ApplyConfig applies the settings that can change while the server
// runs. Today that is the rate limiter; everything else (ports,
// backends, detector set) needs a restart.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.limiter.update(cfg.RateLimit)
	s.logger.Info("runtime configuration applied",
		zap.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		zap.Float64("rate_limit_rps", cfg.RateLimit.RPS),
		zap.Int("rate_limit_burst", cfg.RateLimit.Burst),
	)
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping rgpd gateway server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"name":"rgpd-gateway",
		"privacy_enabled":%t,
		"fail_mode":%q,
		"provider":%q
	}`, s.config.Privacy.Enabled, s.config.Privacy.FailMode, s.config.Provider.Kind)
}

// handleWebSocket upgrades dashboard connections onto the audit hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleWebSocket(w, r)
}
