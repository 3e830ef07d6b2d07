package app

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"

	"github.com/workflowguard/workflowguard/infrastructure/http/middleware"
	"github.com/workflowguard/workflowguard/infrastructure/http/validator"
	"github.com/workflowguard/workflowguard/infrastructure/metrics"
	"github.com/workflowguard/workflowguard/infrastructure/service/apikey"
	"github.com/workflowguard/workflowguard/infrastructure/service/jwt"
	"github.com/workflowguard/workflowguard/infrastructure/service/logger"
	"github.com/workflowguard/workflowguard/infrastructure/service/ratelimit"
	"github.com/workflowguard/workflowguard/internal/adapter/events"
	httpadapter "github.com/workflowguard/workflowguard/internal/adapter/http"
	"github.com/workflowguard/workflowguard/internal/adapter/persistence"
	"github.com/workflowguard/workflowguard/internal/config"
	"github.com/workflowguard/workflowguard/internal/diff"
	"github.com/workflowguard/workflowguard/internal/ports"
	"github.com/workflowguard/workflowguard/internal/usecase"
)

// Container holds every long-lived dependency of the service. The server and
// the CLI both build one.
type Container struct {
	Config  *config.Config
	Policy  *config.Policy
	Logger  logger.Logger
	DB      *sqlx.DB
	Redis   *redis.Client
	Metrics *metrics.Metrics
	Tokens  *jwt.JWTService

	Versions   *usecase.VersionUseCase
	Compliance *usecase.ComplianceUseCase
}

func NewLogger(cfg *config.Config, serviceName string) logger.Logger {
	return logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: serviceName,
	})
}

// New connects to PostgreSQL and, when configured, Redis. A Redis outage is
// not fatal: rate limiting and events fall back to no-ops.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*Container, error) {
	policy, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return nil, err
	}

	db, err := persistence.NewPostgresDB(ctx, persistence.DBConfig{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "Database connection established", nil)

	var redisClient *redis.Client
	if cfg.RedisEnabled() {
		redisClient, err = ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn(ctx, "Redis unavailable, rate limiting and events disabled", map[string]interface{}{
				"error": err.Error(),
			})
			redisClient = nil
		}
	}

	tokens, err := jwt.NewJWTService(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.AccessTokenTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	snapshotValidator, err := validator.NewSnapshotValidator(policy.Diff.StepKeys)
	if err != nil {
		db.Close()
		return nil, err
	}

	var publisher ports.EventPublisher = events.NoopPublisher{}
	if cfg.EventsEnabled && redisClient != nil {
		publisher = events.NewRedisPublisher(redisClient, cfg.EventsChannel)
	}

	m := metrics.New(true)
	engine := diff.NewEngine(policy.Diff.StepKeys)

	versionRepo := persistence.NewPostgresVersionRepository(db)
	auditRepo := persistence.NewPostgresAuditRepository(db)
	workflowRepo := persistence.NewPostgresWorkflowRepository(db)
	userRepo := persistence.NewPostgresUserRepository(db)

	versions := usecase.NewVersionUseCase(
		versionRepo,
		auditRepo,
		workflowRepo,
		userRepo,
		publisher,
		snapshotValidator,
		m,
		engine,
		log,
		usecase.HistoryLimits{Default: policy.History.DefaultLimit, Max: policy.History.MaxLimit},
	)

	compliance := usecase.NewComplianceUseCase(
		versionRepo,
		auditRepo,
		workflowRepo,
		userRepo,
		m,
		engine,
		log,
		usecase.CompliancePolicy{Weights: policy.Compliance.Weights, Thresholds: policy.Compliance.Thresholds},
	)

	return &Container{
		Config:     cfg,
		Policy:     policy,
		Logger:     log,
		DB:         db,
		Redis:      redisClient,
		Metrics:    m,
		Tokens:     tokens,
		Versions:   versions,
		Compliance: compliance,
	}, nil
}

// Router assembles the HTTP route table with auth, rate limiting and metrics.
func (c *Container) Router() *mux.Router {
	auth := middleware.NewAuthMiddleware(c.Tokens, apikey.NewBcryptKeyVerifier(c.Config.SchedulerAPIKeyHash), c.Logger)

	deps := httpadapter.RouterDeps{
		Versions:   c.Versions,
		Compliance: c.Compliance,
		Features:   c.Policy,
		Auth:       auth,
		DB:         c.DB,
		Logger:     c.Logger,
	}

	if c.Config.RateLimitEnabled {
		limiter := ratelimit.NewRateLimitService(c.Redis, c.Logger)
		deps.RateLimit = middleware.NewRateLimitMiddleware(limiter, middleware.RateLimitConfig{
			Requests:      c.Config.RateLimitRequests,
			Window:        c.Config.RateLimitWindow,
			BlockDuration: c.Config.RateLimitBlockDuration,
		}, c.Logger)
	}
	if c.Config.MetricsEnabled {
		deps.Metrics = c.Metrics
	}

	return httpadapter.NewRouter(deps)
}

// ServerConfig maps the environment settings onto the HTTP server.
func (c *Container) ServerConfig() httpadapter.ServerConfig {
	return httpadapter.ServerConfig{
		Host:         c.Config.ServerHost,
		Port:         c.Config.ServerPort,
		ReadTimeout:  c.Config.ServerReadTimeout,
		WriteTimeout: c.Config.ServerWriteTimeout,
		IdleTimeout:  c.Config.ServerIdleTimeout,
		CORSEnabled:  c.Config.CORSEnabled,
		CORS: middleware.CORSConfig{
			AllowedOrigins:   c.Config.CORSAllowedOrigins,
			AllowCredentials: c.Config.CORSAllowCredentials,
			MaxAge:           c.Config.CORSMaxAge,
		},
	}
}

func (c *Container) Close() error {
	if c.Redis != nil {
		c.Redis.Close()
	}
	return c.DB.Close()
}
