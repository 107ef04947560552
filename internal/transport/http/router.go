package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/promark/verify-api/internal/application/binding"
	"github.com/promark/verify-api/internal/application/otp"
	"github.com/promark/verify-api/internal/application/session"
	"github.com/promark/verify-api/internal/config"
	"github.com/promark/verify-api/internal/transport/http/handler"
	appmiddleware "github.com/promark/verify-api/internal/transport/http/middleware"
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

	// 5 requests/second, burst of 10 — applied to the public challenge endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	otpDeps := otp.ServiceDeps{
		ChallengeRepo: deps.ChallengeRepo,
		SessionRepo:   deps.SessionRepo,
		Mailer:        deps.Mailer,
		ChallengeTTL:  cfg.ChallengeTTL,
		MaxAttempts:   cfg.OTPMaxAttempts,
	}
	if deps.JWTProvider != nil {
		otpDeps.JWTProvider = deps.JWTProvider
	}
	otpSvc := otp.NewService(otpDeps)
	bindingSvc := binding.NewService(binding.ServiceDeps{
		SessionRepo:      deps.SessionRepo,
		Evidence:         deps.EvidenceStore,
		Oracle:           deps.Oracle,
		Events:           deps.Events,
		AuditTimeout:     cfg.AuditTimeout,
		AuditMaxAttempts: cfg.AuditMaxAttempts,
	})
	sessionSvc := session.NewService(deps.SessionRepo)

	healthH := handler.NewHealthHandler()
	challengeH := handler.NewChallengeHandler(otpSvc)
	bindingH := handler.NewBindingHandler(bindingSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/challenges", challengeH.Issue)
		r.With(sensitiveRL.Limit).Post("/challenges/verify", challengeH.Verify)
		r.With(sensitiveRL.Limit).Post("/challenges/reset", challengeH.Reset)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Delete("/sessions", sessionH.Clear)

			r.Post("/bindings/handshake", bindingH.Handshake)
			r.Post("/bindings/evidence", bindingH.Evidence)
			r.Post("/bindings/audit", bindingH.Audit)
			r.Post("/bindings/revoke", bindingH.Revoke)
		})
	})

	return r
}
