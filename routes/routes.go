package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/alchemy-tracker/backend/app"
	"github.com/alchemy-tracker/backend/middleware"
	"github.com/alchemy-tracker/backend/utils"
)

// SetupRoutes configures all application routes and middleware. Every
// protected route names its requirement here, at registration.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config
	guard := deps.Guard

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if cfg.IsDevelopment() {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	if cfg.Server.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.With(loginLimiter(cfg.Server.LoginRateLimit)).Post("/login", deps.AuthHandler.HandleLogin)

		// Any verified caller
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Get("/me", deps.AuthHandler.HandleMe)
			r.Get("/permissions/check", deps.AuthHandler.HandleCheckPermission)
		})

		r.With(guard.Require(middleware.RequirePermission("permissions.read"))).
			Get("/permissions", deps.PermissionHandler.HandleListPermissions)

		r.Route("/users", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)

			r.With(guard.Require(middleware.RequireAnyPermission("users.read", "admin.read"))).
				Get("/", deps.UserHandler.HandleListUsers)
			r.With(guard.Require(middleware.RequirePermission("users.create"))).
				Post("/", deps.UserHandler.HandleCreateUser)

			r.Route("/{id}", func(r chi.Router) {
				r.With(guard.Require(middleware.RequireAnyPermission("users.read", "admin.read"))).
					Get("/", deps.UserHandler.HandleGetUser)
				r.With(guard.Require(middleware.RequirePermission("users.update"))).
					Put("/", deps.UserHandler.HandleUpdateUser)
				r.With(guard.Require(middleware.RequireAllPermissions("users.read", "users.update"))).
					Patch("/status", deps.UserHandler.HandleUpdateUserStatus)
				r.With(guard.Require(middleware.RequireRole("Admin"))).
					Delete("/", deps.UserHandler.HandleDeleteUser)

				r.With(guard.Require(middleware.RequirePermission("permissions.read"))).
					Get("/permissions", deps.PermissionHandler.HandleListUserPermissions)
				r.Group(func(r chi.Router) {
					r.Use(guard.Require(middleware.RequirePermission("permissions.manage")))
					r.Post("/permissions", deps.PermissionHandler.HandleGrantUserPermission)
					r.Delete("/permissions/{code}", deps.PermissionHandler.HandleRevokeUserPermission)
				})
			})
		})

		r.Route("/roles", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)

			r.With(guard.Require(middleware.RequirePermission("roles.read"))).
				Get("/", deps.RoleHandler.HandleListRoles)
			r.With(guard.Require(middleware.RequireRole("Admin"))).
				Post("/", deps.RoleHandler.HandleCreateRole)

			r.Route("/{id}", func(r chi.Router) {
				r.With(guard.Require(middleware.RequirePermission("roles.read"))).
					Get("/", deps.RoleHandler.HandleGetRole)

				r.Group(func(r chi.Router) {
					r.Use(guard.Require(middleware.RequireRole("Admin")))
					r.Put("/", deps.RoleHandler.HandleUpdateRole)
					r.Delete("/", deps.RoleHandler.HandleDeleteRole)
				})

				r.With(guard.Require(middleware.RequireAnyPermission("roles.read", "roles.manage"))).
					Get("/permissions", deps.RoleHandler.HandleListRolePermissions)
				r.Group(func(r chi.Router) {
					r.Use(guard.Require(middleware.RequirePermission("roles.manage")))
					r.Post("/permissions", deps.RoleHandler.HandleGrantRolePermission)
					r.Put("/permissions", deps.RoleHandler.HandleReplaceRolePermissions)
					r.Delete("/permissions/{code}", deps.RoleHandler.HandleRevokeRolePermission)
				})
			})
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}

// loginLimiter caps login attempts per client IP per minute
func loginLimiter(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			_ = utils.WriteTooManyRequests(w, "Too many login attempts, try again later", nil)
		}),
	)
}
