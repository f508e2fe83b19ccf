package routes

import (
	"github.com/BradenHooton/vigil/internal/auth"
	"github.com/BradenHooton/vigil/internal/handlers"
	"github.com/BradenHooton/vigil/internal/middleware"
	"github.com/BradenHooton/vigil/internal/models"
	pkghttp "github.com/BradenHooton/vigil/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth     *handlers.AuthHandler
	Behavior *handlers.BehaviorHandler
	Health   *handlers.HealthHandler
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, tokenManager *auth.TokenManager, ipConfig *pkghttp.IPConfig) {
	authLimit := middleware.RateLimitByIP(middleware.DefaultAuthRateLimit(), ipConfig)

	router.Get("/health", h.Health.Health)
	router.Handle("/metrics", promhttp.Handler())

	// Public routes - no authentication required
	router.With(authLimit).Post("/auth/login", h.Auth.Login)
	router.With(authLimit).Post("/auth/register", h.Auth.Register)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))

		r.With(middleware.RateLimitByUser(middleware.DefaultEventRateLimit(), ipConfig)).
			Post("/behavior/events", h.Behavior.RecordEvent)

		// Self or admin; enforced in the handler
		r.Get("/users/{id}/baseline", h.Behavior.GetBaseline)
		r.Get("/users/{id}/devices", h.Behavior.ListDevices)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Post("/users/{id}/baseline/rebuild", h.Behavior.RebuildBaseline)
		})
	})
}
