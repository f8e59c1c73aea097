package group

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coopera/coopera-api/internal/middleware"
	"github.com/coopera/coopera-api/internal/pkg/response"
	"github.com/coopera/coopera-api/internal/pkg/validator"
)

// Handler handles group HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates group handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ListMine handles GET /groups
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	groups, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, groups)
}

// Get handles GET /groups/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid group id")
		return
	}

	g, members, err := h.service.GetGroup(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			response.NotFound(w, "Group not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, GroupResponse{Group: g, Members: members})
}

// Contemplate handles POST /admin/groups/{id}/contemplate
func (h *Handler) Contemplate(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid group id")
		return
	}

	var req ContemplateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	winner, err := h.service.SelectContemplated(r.Context(), groupID, SelectionMode(req.Mode), req.Member)
	if err != nil {
		switch {
		case errors.Is(err, ErrGroupNotFound):
			response.NotFound(w, "Group not found")
		case errors.Is(err, ErrAlreadyContemplated):
			response.Conflict(w, "Group was already contemplated")
		case errors.Is(err, ErrMemberNotFound):
			response.NotFound(w, "No participant matches the given member")
		case errors.Is(err, ErrPaymentPending):
			response.Error(w, http.StatusUnprocessableEntity, "PAYMENT_PENDING", "Participant has not completed payment")
		case errors.Is(err, ErrNoEligibleParticipants):
			response.Error(w, http.StatusUnprocessableEntity, "NO_ELIGIBLE_PARTICIPANTS", "Group has no paid participants to draw from")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, winner)
}

// Confirm handles POST /admin/groups/{id}/confirm
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid group id")
		return
	}
	participantID, err := uuid.Parse(chi.URLParam(r, "participantID"))
	if err != nil {
		response.BadRequest(w, "Invalid participant id")
		return
	}

	if err := h.service.ConfirmContemplation(r.Context(), groupID, participantID); err != nil {
		switch {
		case errors.Is(err, ErrGroupNotFound):
			response.NotFound(w, "Group not found")
		case errors.Is(err, ErrParticipantNotFound):
			response.NotFound(w, "Contemplated participant not found")
		case errors.Is(err, ErrGroupNotForming):
			response.Conflict(w, "Group is not awaiting confirmation")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]string{"message": "Contemplation confirmed"})
}
