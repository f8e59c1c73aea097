package plan

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coopera/coopera-api/internal/pkg/response"
	"github.com/coopera/coopera-api/internal/pkg/validator"
)

// Handler handles plan HTTP requests
type Handler struct {
	repo Repository
}

// NewHandler creates plan handler
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// List handles GET /plans
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.repo.List(r.Context(), true)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, plans)
}

// Get handles GET /plans/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid plan id")
		return
	}

	p, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "Plan not found")
		} else {
			response.InternalError(w)
		}
		return
	}
	response.OK(w, p)
}

// Create handles POST /admin/plans
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	p := &Plan{
		ID:              uuid.New(),
		Name:            req.Name,
		PriceCents:      req.PriceCents,
		MaxParticipants: req.MaxParticipants,
		Active:          true,
	}
	if req.Description != "" {
		p.Description = sql.NullString{String: req.Description, Valid: true}
	}
	if req.CommissionPercent != nil {
		p.CommissionPercent = sql.NullInt64{Int64: *req.CommissionPercent, Valid: true}
	}
	if req.Active != nil {
		p.Active = *req.Active
	}

	if err := h.repo.Create(r.Context(), p); err != nil {
		response.InternalError(w)
		return
	}
	response.Created(w, p)
}

// Update handles PUT /admin/plans/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid plan id")
		return
	}

	var req UpdatePlanRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	p, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "Plan not found")
		} else {
			response.InternalError(w)
		}
		return
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = sql.NullString{String: *req.Description, Valid: *req.Description != ""}
	}
	if req.PriceCents != nil {
		p.PriceCents = *req.PriceCents
	}
	if req.MaxParticipants != nil {
		p.MaxParticipants = *req.MaxParticipants
	}
	if req.CommissionPercent != nil {
		p.CommissionPercent = sql.NullInt64{Int64: *req.CommissionPercent, Valid: true}
	}
	if req.Active != nil {
		p.Active = *req.Active
	}

	if err := h.repo.Update(r.Context(), p); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "Plan not found")
		} else {
			response.InternalError(w)
		}
		return
	}
	response.OK(w, p)
}
