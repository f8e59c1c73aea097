package credit

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/coopera/coopera-api/internal/middleware"
	"github.com/coopera/coopera-api/internal/pkg/response"
	"github.com/coopera/coopera-api/internal/pkg/validator"
)

// Handler handles credit HTTP requests
type Handler struct {
	service Service
}

// NewHandler creates credit handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// GetBalance handles GET /credits/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, toBalanceResponse(balance))
}

// ListTransactions handles GET /credits/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit, offset := parsePagination(r)

	transactions, err := h.service.ListTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, transactions)
}

// UseCredits handles POST /credits/use
func (h *Handler) UseCredits(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req UseCreditsRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	desc := req.Description
	if desc == "" {
		desc = "marketplace purchase"
	}

	err := h.service.UseCredits(r.Context(), userID, req.AmountCents, SourceMarketplacePurchase, desc, req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "Amount must be greater than zero")
		case errors.Is(err, ErrInsufficientBalance):
			response.Error(w, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Available credits do not cover this amount")
		case errors.Is(err, ErrReferenceConflict):
			response.Conflict(w, "Order was already applied with a different amount")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]string{"message": "Credits applied"})
}

// RequestWithdrawal handles POST /credits/withdrawals
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req WithdrawRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result, err := h.service.RequestWithdrawal(r.Context(), userID, req.AmountCents)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "Amount must be greater than zero")
		case errors.Is(err, ErrBelowMinimum):
			response.Error(w, http.StatusUnprocessableEntity, "BELOW_MINIMUM", "Withdrawal amount is below the minimum")
		case errors.Is(err, ErrInsufficientBalance):
			response.Error(w, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Available credits do not cover this withdrawal")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, result)
}

// ListWithdrawals handles GET /credits/withdrawals
func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit, offset := parsePagination(r)

	requests, err := h.service.ListWithdrawals(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, requests)
}

// Adjust handles POST /admin/credits/adjust
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.BadRequest(w, "Invalid user_id")
		return
	}

	if err := h.service.Adjust(r.Context(), userID, req.AmountCents, TxType(req.Type), req.Description); err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "Amount must be greater than zero")
		case errors.Is(err, ErrInsufficientBalance):
			response.Error(w, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Available credits do not cover this adjustment")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]string{"message": "Balance adjusted"})
}

// SearchTransactions handles GET /admin/credits/transactions
func (h *Handler) SearchTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	filters := SearchFilters{Limit: limit, Offset: offset}
	if v := r.URL.Query().Get("user_id"); v != "" {
		filters.UserID = &v
	}
	if v := r.URL.Query().Get("type"); v != "" {
		filters.Type = &v
	}
	if v := r.URL.Query().Get("source"); v != "" {
		filters.Source = &v
	}
	if v := r.URL.Query().Get("reference_id"); v != "" {
		filters.ReferenceID = &v
	}

	transactions, err := h.service.SearchTransactions(r.Context(), filters)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, transactions)
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
