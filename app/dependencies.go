package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/config"
	"github.com/alchemy-tracker/backend/handlers"
	"github.com/alchemy-tracker/backend/internal/observability"
	"github.com/alchemy-tracker/backend/middleware"
	"github.com/alchemy-tracker/backend/repositories"
	"github.com/alchemy-tracker/backend/repositories/postgres"
	"github.com/alchemy-tracker/backend/services"
	"github.com/alchemy-tracker/backend/services/authz"
	"github.com/alchemy-tracker/backend/supabase"
	"github.com/alchemy-tracker/backend/tokens"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Repositories *repositories.Repositories
	TxManager    repositories.TransactionManager

	// Managed auth / PostgREST client, nil when SUPABASE_URL is unset
	Supabase *supabase.Client

	// Authorization core
	Codec          *tokens.Codec
	Verifier       *middleware.CredentialVerifier
	Resolver       *authz.Resolver
	Guard          *middleware.Guard
	AuthMiddleware *middleware.AuthMiddleware

	// Handlers
	AuthHandler       *handlers.AuthHandler
	UserHandler       *handlers.UserHandler
	RoleHandler       *handlers.RoleHandler
	PermissionHandler *handlers.PermissionHandler
	HealthHandler     *handlers.HealthHandler
}

// NewDependencies opens the database and wires every component.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesWithFactory(ctx, cfg, logger, factory)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesWithFactory wires every component over an already open
// repository factory.
func NewDependenciesWithFactory(ctx context.Context, cfg *config.Config, logger *zap.Logger, factory *postgres.RepositoryFactory) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics()
	}

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initAuth(); err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully",
		zap.String("data_backend", cfg.DataBackend),
		zap.Bool("session_lookup", cfg.SessionLookupEnabled()),
		zap.String("token_algorithm", deps.Codec.Algorithm()))
	return deps, nil
}

// initDatabase checks the connection and applies the schema
func (d *Dependencies) initDatabase(ctx context.Context) error {
	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := d.DB.InitSchema(ctx); err != nil {
		return err
	}

	d.Logger.Info("database connection established",
		zap.String("connection", d.Config.Database.LogString()))
	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	d.Repositories = d.RepoFactory.NewRepositories()
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initAuth builds the codec, the verifier chain and the guard. The
// resolver's store follows DATA_BACKEND.
func (d *Dependencies) initAuth() error {
	cfg := d.Config

	codec, err := tokens.NewCodec(cfg.Auth)
	if err != nil {
		return err
	}
	d.Codec = codec

	if cfg.Supabase.URL != "" {
		d.Supabase = supabase.NewClient(cfg.Supabase, d.Logger, d.Metrics)
	}

	// A nil *supabase.Client must not leak into the interface.
	var sessions middleware.SessionLookup
	if d.Supabase != nil && cfg.SessionLookupEnabled() {
		sessions = d.Supabase
	} else {
		d.Logger.Warn("managed-auth session lookup disabled, only signed tokens are accepted")
	}
	d.Verifier = middleware.NewCredentialVerifier(sessions, codec, d.Logger, d.Metrics)

	var store authz.Store
	switch cfg.DataBackend {
	case config.DataBackendSupabase:
		if d.Supabase == nil {
			return fmt.Errorf("supabase data backend requires SUPABASE_URL")
		}
		store = supabase.NewStore(d.Supabase)
	default:
		store = authz.NewRepositoryStore(d.Repositories)
	}
	d.Resolver = authz.NewResolver(store, d.Logger, d.Metrics)

	d.Guard = middleware.NewGuard(d.Verifier, d.Resolver, d.Logger, d.Metrics)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Verifier, d.Logger)

	d.Logger.Info("auth initialized")
	return nil
}

func (d *Dependencies) initHandlers() {
	authService := services.NewAuthService(d.Repositories, d.Codec, d.Config.Auth.TokenTTL, d.Logger)
	userService := services.NewUserService(d.Repositories, d.TxManager, d.Logger)
	roleService := services.NewRoleService(d.Repositories, d.TxManager, d.Logger)
	permissionService := services.NewPermissionService(d.Repositories, d.Logger)

	d.AuthHandler = handlers.NewAuthHandler(authService, d.Resolver, d.Logger)
	d.UserHandler = handlers.NewUserHandler(userService, d.Logger)
	d.RoleHandler = handlers.NewRoleHandler(roleService, d.Logger)
	d.PermissionHandler = handlers.NewPermissionHandler(permissionService, d.Logger)

	var probes []handlers.ReadinessProbe
	if d.Supabase != nil {
		probes = append(probes, handlers.ReadinessProbe{Name: "supabase", Check: d.Supabase.Ping})
	}
	d.HealthHandler = handlers.NewHealthHandler(d.DB.DB, d.Logger, probes...)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}
