// Package httpapi implements the external HTTP surface: status GET/PUT
// with long-poll, the /button, /host, and /restart action endpoints, the
// /log tail endpoint, a live /ws/status stream, and the additive
// /metrics and /docs endpoints.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DonGar/house-monitor/internal/actions"
	"github.com/DonGar/house-monitor/internal/httpapi/middleware"
	"github.com/DonGar/house-monitor/internal/statustree"
)

// WebUpdatable reports whether an adapter has declared path as
// PUT-able from the HTTP surface; Web adapters register the paths under
// their mount as web-updatable, while File/Web-managed trees reject PUTs
// elsewhere.
type WebUpdatable interface {
	IsWebUpdatable(path string) bool
}

// Restarter stops the owning process, per POST /restart.
type Restarter interface {
	Restart()
}

// Config bundles the Server's collaborators and tuning knobs.
type Config struct {
	Tree      *statustree.Tree
	Manager   *actions.Manager
	WebPaths  WebUpdatable
	Restart   Restarter
	LogTail   *LogTail
	Logger    *slog.Logger

	EnableMetrics     bool
	EnableCORS        bool
	EnableRateLimit   bool
	RateLimitPerMin   int
	RateLimitBurst    int
	CORSConfig        middleware.CORSConfig
}

// DefaultConfig fills in reasonable defaults for every toggle; callers
// still must set Tree/Manager/WebPaths/Restart/LogTail/Logger themselves.
func DefaultConfig() Config {
	return Config{
		EnableMetrics:   true,
		EnableCORS:      true,
		EnableRateLimit: true,
		RateLimitPerMin: 120,
		RateLimitBurst:  40,
		CORSConfig:      middleware.DefaultCORSConfig(),
	}
}

// Server owns the mux.Router and the handlers' shared collaborators.
type Server struct {
	cfg    Config
	router *mux.Router
}

// NewServer builds the full route tree with its middleware stack applied
// in the teacher's order: request-id, logging, metrics, CORS router-wide,
// then rate limiting scoped to the mutating subrouter registerRoutes builds.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{cfg: cfg, router: mux.NewRouter()}

	s.router.Use(middleware.RequestIDMiddleware)
	s.router.Use(middleware.LoggingMiddleware(cfg.Logger))
	if cfg.EnableMetrics {
		s.router.Use(middleware.MetricsMiddleware)
	}
	if cfg.EnableCORS {
		s.router.Use(middleware.CORSMiddleware(cfg.CORSConfig))
	}

	s.registerRoutes()
	return s
}

// registerRoutes wires the route tree. Rate limiting only applies to the
// routes that trigger dispatch-side effects outside the process — a status
// write, a button/host action, or a restart — since those are the ones that
// can drive outbound fetches, pings, WOL packets, or process exit. Status
// reads and the long-poll/WebSocket streams never dispatch an action, so
// they are left off the limited subrouter.
func (s *Server) registerRoutes() {
	r := s.router

	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/status/{rest:.*}", s.handleStatus).Methods(http.MethodGet)

	r.HandleFunc("/log", s.handleLog).Methods(http.MethodGet, http.MethodPost)

	r.HandleFunc("/ws/status", s.handleWebSocket)
	r.HandleFunc("/ws/status/{rest:.*}", s.handleWebSocket)

	if s.cfg.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
	r.PathPrefix("/docs").Handler(httpSwagger.WrapHandler)

	mutating := r.NewRoute().Subrouter()
	if s.cfg.EnableRateLimit {
		mutating.Use(middleware.RateLimitMiddleware(s.cfg.RateLimitPerMin, s.cfg.RateLimitBurst))
	}
	mutating.HandleFunc("/status", s.handleStatus).Methods(http.MethodPut)
	mutating.HandleFunc("/status/{rest:.*}", s.handleStatus).Methods(http.MethodPut)
	mutating.HandleFunc("/button/{id}", s.handleButton).Methods(http.MethodPost)
	mutating.HandleFunc("/host/{id}", s.handleHost).Methods(http.MethodPost)
	mutating.HandleFunc("/restart", s.handleRestart).Methods(http.MethodPost)
}

// Handler returns the root http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }
