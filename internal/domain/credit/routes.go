package credit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns credit routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)

	r.Get("/balance", h.GetBalance)
	r.Get("/transactions", h.ListTransactions)
	r.Post("/use", h.UseCredits)
	r.Post("/withdrawals", h.RequestWithdrawal)
	r.Get("/withdrawals", h.ListWithdrawals)

	return r
}

// AdminRoutes returns admin-only credit routes
func (h *Handler) AdminRoutes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(adminMiddleware)

	r.Post("/adjust", h.Adjust)
	r.Get("/transactions", h.SearchTransactions)

	return r
}
