package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Rizvi-Faiz/sso-system/audit"
	"github.com/Rizvi-Faiz/sso-system/config"
	"github.com/Rizvi-Faiz/sso-system/handlers"
	"github.com/Rizvi-Faiz/sso-system/identity"
	"github.com/Rizvi-Faiz/sso-system/middleware"
	"github.com/Rizvi-Faiz/sso-system/session"
	"github.com/Rizvi-Faiz/sso-system/token"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config   *config.Config
	Logger   *zap.Logger
	Sessions *session.Store
	Recorder audit.Recorder

	// Core services
	Codec    *token.Codec
	Tokens   *token.Service
	Verifier identity.Verifier

	// HTTP layer
	AuthHandler    *handlers.AuthHandler
	HealthHandler  *handlers.HealthHandler
	AuthMiddleware *middleware.AuthMiddleware

	pgRecorder *audit.PostgresRecorder
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Session store (shared Redis)
	deps.Sessions = session.NewStore(cfg.Redis, logger)
	if err := deps.Sessions.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach session store: %w", err)
	}
	logger.Info("session store connection established",
		zap.String("addr", cfg.Redis.Addr))

	// Audit trail (optional)
	if err := deps.initAudit(ctx, cfg); err != nil {
		return nil, err
	}

	// Token codec and service
	codec, err := token.NewCodec(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential codec: %w", err)
	}
	deps.Codec = codec
	deps.Tokens = token.NewService(codec, deps.Sessions, cfg.Auth, logger)

	// External identity provider
	deps.Verifier = identity.NewValidator(cfg.Identity)

	// HTTP layer
	deps.AuthMiddleware = middleware.NewAuthMiddleware(deps.Tokens, logger)
	deps.AuthHandler = handlers.NewAuthHandler(cfg, deps.Verifier, deps.Tokens, deps.Sessions, deps.Recorder, logger)
	deps.HealthHandler = handlers.NewHealthHandler(deps.Sessions, deps.auditPinger(), logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initAudit initializes the Postgres-backed audit recorder when an audit
// database is configured, and falls back to a no-op recorder otherwise.
func (d *Dependencies) initAudit(ctx context.Context, cfg *config.Config) error {
	if cfg.Database == nil {
		d.Recorder = audit.NopRecorder{}
		d.Logger.Info("audit database not configured, auditing disabled")
		return nil
	}

	recorder, err := audit.NewPostgresRecorder(cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize audit recorder: %w", err)
	}
	if err := recorder.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	d.pgRecorder = recorder
	d.Recorder = recorder
	return nil
}

// auditPinger exposes the audit DB to the readiness check, or nil when
// auditing is disabled.
func (d *Dependencies) auditPinger() handlers.Pinger {
	if d.pgRecorder == nil {
		return nil
	}
	return handlers.PingerFunc(d.pgRecorder.HealthCheck)
}

// Close releases all held resources.
func (d *Dependencies) Close() error {
	var firstErr error
	if d.pgRecorder != nil {
		if err := d.pgRecorder.Close(); err != nil {
			firstErr = err
		}
	}
	if d.Sessions != nil {
		if err := d.Sessions.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
