package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/workflowguard/workflowguard/infrastructure/http/middleware"
	"github.com/workflowguard/workflowguard/infrastructure/metrics"
	"github.com/workflowguard/workflowguard/infrastructure/service/logger"
	"github.com/workflowguard/workflowguard/internal/ports"
)

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	CORSEnabled bool
	CORS        middleware.CORSConfig
}

// Pinger reports backing store health for /health
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps are the collaborators wired into the router. RateLimit, Metrics
// and DB may be nil.
type RouterDeps struct {
	Versions   VersionUseCase
	Compliance ComplianceUseCase
	Features   ports.FeatureGate
	Auth       *middleware.AuthMiddleware
	RateLimit  *middleware.RateLimitMiddleware
	Metrics    *metrics.Metrics
	DB         Pinger
	Logger     logger.Logger
}

// NewRouter builds the route table:
//
//	/health, /metrics          public
//	/api/v1/admin/...          Authenticate + AdminOnly
//	/api/v1/...                Authenticate + rate limit
func NewRouter(deps RouterDeps) *mux.Router {
	router := mux.NewRouter()

	var observer middleware.RequestObserver
	if deps.Metrics != nil {
		observer = deps.Metrics
	}
	router.Use(middleware.RequestLogger(deps.Logger, observer), middleware.Recovery(deps.Logger))

	router.HandleFunc("/health", healthHandler(deps.DB)).Methods("GET")
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	}

	versionHandler := NewVersionHandler(deps.Versions, deps.Features, deps.Logger)
	complianceHandler := NewComplianceHandler(deps.Compliance, deps.Features, deps.Logger)

	admin := router.NewRoute().PathPrefix("/api/v1/admin").Subrouter()
	admin.Use(deps.Auth.Authenticate, deps.Auth.AdminOnly)
	versionHandler.RegisterAdminRoutes(admin)

	api := router.NewRoute().PathPrefix("/api/v1").Subrouter()
	api.Use(deps.Auth.Authenticate)
	if deps.RateLimit != nil {
		api.Use(deps.RateLimit.RateLimit)
	}
	versionHandler.RegisterRoutes(api)
	complianceHandler.RegisterRoutes(api)

	return router
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				writeErrorResponse(w, http.StatusServiceUnavailable, "database_unavailable", "Database unavailable")
				return
			}
		}
		writeSuccessResponse(w, http.StatusOK, "ok", map[string]string{"status": "ok"})
	}
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	logger logger.Logger
}

// NewServer wraps router with correlation ids and, when enabled, CORS.
func NewServer(config ServerConfig, router http.Handler, log logger.Logger) *Server {
	var handler http.Handler = router
	if config.CORSEnabled {
		handler = middleware.CORSMiddleware(handler, config.CORS)
	}
	handler = middleware.CorrelationIDMiddleware(handler)

	return &Server{
		logger: log,
		server: &http.Server{
			Addr:         config.Host + ":" + config.Port,
			Handler:      handler,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// Start blocks until the server stops. http.ErrServerClosed signals a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "Starting HTTP server", map[string]interface{}{"addr": s.server.Addr})
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server", nil)
	return s.server.Shutdown(ctx)
}
