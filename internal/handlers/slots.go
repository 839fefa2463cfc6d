package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mentorly-backend/internal/middleware"
	"mentorly-backend/internal/models"
	"mentorly-backend/internal/services"
)

type SlotHandler struct {
	bookingService *services.BookingService
}

func NewSlotHandler(bookingService *services.BookingService) *SlotHandler {
	return &SlotHandler{bookingService: bookingService}
}

// MarkAvailability opens availability windows for the authenticated mentor.
func (h *SlotHandler) MarkAvailability(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())

	var req models.MarkAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	slots, err := h.bookingService.MarkAvailable(r.Context(), authCtx.UserID, req.Windows)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"slots": slots})
}

// RemoveAvailability releases unbooked slots owned by the authenticated mentor.
func (h *SlotHandler) RemoveAvailability(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())

	var req models.RemoveAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	removed, err := h.bookingService.RemoveAvailability(r.Context(), authCtx.UserID, req.SlotIDs)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

// ListAvailable returns a mentor's open slots to any authenticated user.
func (h *SlotHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	mentorID, err := uuid.Parse(chi.URLParam(r, "mentorID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid mentor ID", r))
		return
	}

	slots, err := h.bookingService.AvailableSlots(r.Context(), mentorID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"slots": slots})
}

// Book reserves a slot for the authenticated student, debiting one token.
func (h *SlotHandler) Book(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())

	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	slot, err := h.bookingService.Reserve(r.Context(), authCtx.UserID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, slot)
}

// MySchedule lists every slot belonging to the authenticated mentor.
func (h *SlotHandler) MySchedule(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())

	slots, err := h.bookingService.MentorSchedule(r.Context(), authCtx.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"slots": slots})
}

// MySessions lists the authenticated student's booked sessions.
func (h *SlotHandler) MySessions(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())

	slots, err := h.bookingService.StudentSessions(r.Context(), authCtx.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": slots})
}
