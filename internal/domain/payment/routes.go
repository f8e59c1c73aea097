package payment

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// WebhookRoutes returns unauthenticated provider webhook routes.
// Each handler does its own provider-specific authentication.
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/asaas", h.AsaasWebhook)
	r.Post("/stripe", h.StripeWebhook)

	return r
}

// Routes returns authenticated payment routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)

	r.Get("/", h.ListMine)

	return r
}
