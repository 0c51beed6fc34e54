package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID)
	router.Use(h.withLogging)
	router.Use(h.withMetrics)

	router.Get("/health", h.health)
	router.Handle("/metrics", h.metrics.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(h.requestTimeout))

		r.Get("/version", h.getServerVersion)

		// routes without authorization
		r.Route("/v1/auth", func(r chi.Router) {
			r.Post("/signup", h.signup)
			r.Post("/login", h.login)
			r.Post("/login/2fa", h.loginCode)
			r.Post("/login/backup", h.loginBackupCode)
			r.Post("/refresh", h.refresh)
			r.Post("/logout", h.logout)
		})

		r.Route("/v1/users/me", func(r chi.Router) {
			r.Use(h.auth)

			r.Get("/", h.profile)
			r.Patch("/", h.updateEmail)
			r.Post("/password", h.changePassword)
			r.Post("/2fa/enable", h.enableTwoFactor)
			r.Post("/2fa/confirm", h.confirmTwoFactor)
			r.Post("/2fa/disable", h.disableTwoFactor)
			r.Post("/2fa/backup-codes", h.regenerateBackupCodes)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowed(CheckHTTPMethod(router))

	return router
}
