package trigger

import (
	"net/http"
	"time"

	"github.com/coopera/coopera-api/internal/pkg/response"
)

// Handler exposes the manual sweep for operators.
type Handler struct {
	service *Service
}

// NewHandler creates trigger handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RunResponse summarises one manual sweep.
type RunResponse struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Swept     int `json:"swept"`
	SweptFail int `json:"swept_failed"`
}

// Run handles POST /admin/triggers/run. Same work the ticker worker does,
// on demand.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	due, err := h.service.ProcessDueTriggers(r.Context(), now)
	if err != nil {
		response.InternalError(w)
		return
	}

	stale, err := h.service.SweepStaleGroups(r.Context(), now)
	if err != nil {
		response.InternalError(w)
		return
	}

	resp := RunResponse{}
	for _, res := range due {
		if res.Err != nil {
			resp.Failed++
		} else {
			resp.Processed++
		}
	}
	for _, res := range stale {
		if res.Err != nil {
			resp.SweptFail++
		} else {
			resp.Swept++
		}
	}

	response.OK(w, resp)
}
