package handlers

import (
	"net/http"

	"mentorly-backend/internal/middleware"
	"mentorly-backend/internal/services"
)

type EarningsHandler struct {
	earningsService *services.EarningsService
}

func NewEarningsHandler(earningsService *services.EarningsService) *EarningsHandler {
	return &EarningsHandler{earningsService: earningsService}
}

// Summary returns the mentor's earnings aggregate and transaction history.
func (h *EarningsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())

	earnings, transactions, err := h.earningsService.Summary(r.Context(), authCtx.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"earnings":     earnings,
		"transactions": transactions,
	})
}
