package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns auth routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)

	r.Group(func(pr chi.Router) {
		pr.Use(authMiddleware)
		pr.Get("/me", h.Me)
	})

	return r
}
