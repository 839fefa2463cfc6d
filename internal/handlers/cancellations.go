package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mentorly-backend/internal/middleware"
	"mentorly-backend/internal/services"
)

type CancellationHandler struct {
	cancellationService *services.CancellationService
}

func NewCancellationHandler(cancellationService *services.CancellationService) *CancellationHandler {
	return &CancellationHandler{cancellationService: cancellationService}
}

// Request lets the booked student ask for a cancellation, pending mentor approval.
func (h *CancellationHandler) Request(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())

	slotID, err := uuid.Parse(chi.URLParam(r, "slotID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid slot ID", r))
		return
	}

	slot, err := h.cancellationService.RequestCancellation(r.Context(), authCtx, slotID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, slot)
}

// Approve lets the mentor confirm a pending cancellation, refunding the student.
func (h *CancellationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())

	slotID, err := uuid.Parse(chi.URLParam(r, "slotID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid slot ID", r))
		return
	}

	slot, err := h.cancellationService.ApproveCancellation(r.Context(), authCtx, slotID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, slot)
}

// Cancel lets the mentor cancel a confirmed session outright, refunding the student.
func (h *CancellationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())

	slotID, err := uuid.Parse(chi.URLParam(r, "slotID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid slot ID", r))
		return
	}

	slot, err := h.cancellationService.CancelDirect(r.Context(), authCtx, slotID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, slot)
}
