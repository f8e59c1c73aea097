package referral

import (
	"net/http"
	"strconv"

	"github.com/coopera/coopera-api/internal/middleware"
	"github.com/coopera/coopera-api/internal/pkg/response"
)

// Handler handles referral HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates referral handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ListCommissions handles GET /referrals/commissions
func (h *Handler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit, offset := parsePagination(r)

	commissions, err := h.service.ListCommissions(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, commissions)
}

// GetStats handles GET /referrals/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	stats, err := h.service.GetStats(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, StatsResponse{
		ReferredCount:       stats.ReferredCount,
		PendingCents:        stats.PendingCents,
		ConfirmedCents:      stats.ConfirmedCents,
		PendingCommissions:  stats.PendingCommissions,
		ConfirmedCommission: stats.ConfirmedCommission,
	})
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
