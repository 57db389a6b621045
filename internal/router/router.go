package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/linkup-dev/linkup/internal/metrics"
	mw "github.com/linkup-dev/linkup/internal/middleware"
	"github.com/linkup-dev/linkup/internal/setup"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// New builds the HTTP surface over the account core.
func New(deps *setup.Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(mw.SecurityHeaders(deps.Config.Public.SecureCookies))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Public.AllowedOrigin,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := deps.Handler
	authMw := deps.AuthMiddleware
	limits := deps.RateLimits

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/confirm/{code}", h.Activate)
			r.Post("/reset-password/{token}", h.ResetPassword)
			r.With(authMw.NeedAuth()).Post("/logout", h.Logout)

			r.With(mw.RateLimit(limits.Login, mw.ByIP)).Post("/login", h.Login)

			// Endpoints that send mail or check a one-time code
			r.Group(func(r chi.Router) {
				r.Use(mw.RateLimit(limits.MailIP, mw.ByIP))
				r.Use(mw.RateLimit(limits.Mail, mw.ByEmailInBody))
				r.Post("/register", h.Register)
				r.Post("/resend-activation", h.ResendActivation)
				r.Post("/forgot-password", h.ForgotPassword)
				r.Post("/forgot-password-otp", h.RequestPasswordOTP)
				r.Post("/reset-password-otp", h.ResetPasswordOTP)
			})
		})

		// recovery runs while the account is deleted, so it can't sit behind the gate
		r.Get("/user/recover/{token}", h.RecoverAccount)

		// Logged-in user routes
		r.Group(func(r chi.Router) {
			r.Use(authMw.NeedAuth())
			r.Get("/user/profile", h.Profile)
			r.Patch("/user", h.UpdateProfile)
			r.Put("/user/password", h.ChangePassword)
			r.Delete("/user", h.DeleteAccount)
			r.Get("/user/connections", h.Connections)
			r.Get("/users/{userId}/profile", h.PublicProfile)

			r.Post("/follows/{userId}", h.RequestFollow)
			r.Post("/follows/{userId}/accept", h.AcceptFollow)
			r.Delete("/follows/{userId}", h.RejectFollow)
			r.Get("/users/{userId}/connections", h.Connections)

			r.Get("/ws", deps.Presence.Handler(deps.Config.Public.AllowedOrigin))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authMw.AdminOnly())
			r.Get("/users", h.ListAccounts)
			r.Get("/users/online", h.OnlineAccounts)
			r.Get("/presence", h.Presence)
			r.Post("/users/{userId}/block", h.BlockAccount)
			r.Delete("/users/{userId}/block", h.UnblockAccount)
		})
	})

	return r
}
