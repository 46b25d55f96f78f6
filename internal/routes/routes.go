package routes

import (
	"github.com/bastionhq/bastion/internal/auth"
	"github.com/bastionhq/bastion/internal/handlers"
	"github.com/bastionhq/bastion/internal/middleware"
	"github.com/bastionhq/bastion/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers all management API routes
func RegisterRoutes(
	router chi.Router,
	loginAttemptHandler *handlers.LoginAttemptHandler,
	auditLogHandler *handlers.AuditLogHandler,
	tokenManager *auth.TokenManager,
	registry *prometheus.Registry,
) {
	rateLimitConfig := middleware.DefaultManagementRateLimit()

	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// All management endpoints require authentication
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(rateLimitConfig))
		r.Use(auth.AuthMiddleware(tokenManager))

		// Any authenticated caller may read
		r.Get("/login-attempts", loginAttemptHandler.FindLoginAttempt)
		r.Get("/login-attempts/{id}", loginAttemptHandler.GetLoginAttempt)
		r.Get("/domains/{domain}/audit-logs", auditLogHandler.GetDomainAuditTrail)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Delete("/domains/{domain}/login-attempts", loginAttemptHandler.ClearDomainLoginAttempts)
		})
	})
}
