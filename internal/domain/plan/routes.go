package plan

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns public plan routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{id}", h.Get)

	return r
}

// AdminRoutes returns admin plan routes
func (h *Handler) AdminRoutes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(adminMiddleware)

	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)

	return r
}
