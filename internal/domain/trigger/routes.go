package trigger

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// AdminRoutes returns the operator trigger routes
func (h *Handler) AdminRoutes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(adminMiddleware)

	r.Post("/run", h.Run)

	return r
}
