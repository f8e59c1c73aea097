package referral

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns influencer referral routes
func (h *Handler) Routes(authMiddleware, influencerMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(influencerMiddleware)

	r.Get("/commissions", h.ListCommissions)
	r.Get("/stats", h.GetStats)

	return r
}
