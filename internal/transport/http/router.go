package http

import (
	"net/http"

	"github.com/concierge-api/internal/application/document"
	"github.com/concierge-api/internal/application/lead"
	"github.com/concierge-api/internal/application/otp"
	"github.com/concierge-api/internal/application/session"
	"github.com/concierge-api/internal/application/user"
	"github.com/concierge-api/internal/config"
	"github.com/concierge-api/internal/domain"
	"github.com/concierge-api/internal/transport/http/handler"
	appmiddleware "github.com/concierge-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	// The per-email code-request limit lives in the otp service; this layer
	// only keeps a single client from hammering the endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	otpSvc := otp.NewService(otp.ServiceDeps{
		OTPRepo:         deps.OTPRepo,
		UserRepo:        deps.UserRepo,
		SessionRepo:     deps.SessionRepo,
		PendingRepo:     deps.PendingSignupRepo,
		Limiter:         otp.NewLimiter(deps.RateLimitRepo, cfg.OTPRateLimit, cfg.OTPRateWindow),
		Notifier:        otp.NewEmailNotifier(deps.Mailer, cfg.OTPExpiry),
		JWTProvider:     deps.JWTProvider,
		CodeLength:      cfg.OTPCodeLength,
		CodeExpiry:      cfg.OTPExpiry,
		PendingTTL:      cfg.PendingSignupTTL,
		RefreshTokenDur: cfg.RefreshTokenDur,
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		SessionRepo:     deps.SessionRepo,
		UserRepo:        deps.UserRepo,
		JWTProvider:     deps.JWTProvider,
		RefreshTokenDur: cfg.RefreshTokenDur,
	})
	userSvc := user.NewService(deps.UserRepo, deps.SessionRepo)
	leadSvc := lead.NewService(lead.ServiceDeps{
		Repo:       deps.LeadRepo,
		Mailer:     deps.Mailer,
		SMSSender:  deps.SMSSender,
		InboxEmail: cfg.LeadInboxEmail,
		OnCallSMS:  cfg.LeadOnCallSMS,
	})
	documentSvc := document.NewService(deps.S3Store, deps.DocumentRepo)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(otpSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)
	userH := handler.NewUserHandler(userSvc)
	leadH := handler.NewLeadHandler(leadSvc)
	documentH := handler.NewDocumentHandler(documentSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.Get("/test", healthH.Test)
		r.Post("/test", healthH.Test)
		r.With(sensitiveRL.Limit).Post("/auth/request-code", authH.RequestCode)
		r.With(sensitiveRL.Limit).Post("/auth/verify-code", authH.VerifyCode)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.Post("/sessions/refresh", sessionH.Refresh)
		r.With(sensitiveRL.Limit).Post("/leads", leadH.Create)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			// Any authenticated user
			r.Get("/users/{id}", userH.Get)
			r.Put("/users/{id}", userH.Update)
			r.Post("/documents", documentH.Upload)
			r.Get("/documents", documentH.List)
			r.Get("/documents/{id}", documentH.Download)
			r.Delete("/documents/{id}", documentH.Delete)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/users", userH.List)
				r.Delete("/users/{id}", userH.Delete)

				r.Get("/leads", leadH.List)
				r.Get("/leads/{id}", leadH.Get)
				r.Put("/leads/{id}", leadH.Update)
			})
		})
	})

	return r
}
