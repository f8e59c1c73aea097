package group

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns authenticated group routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)

	r.Get("/", h.ListMine)
	r.Get("/{id}", h.Get)

	return r
}

// AdminRoutes returns admin group routes
func (h *Handler) AdminRoutes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(adminMiddleware)

	r.Post("/{id}/contemplate", h.Contemplate)
	r.Post("/{id}/confirm/{participantID}", h.Confirm)

	return r
}
