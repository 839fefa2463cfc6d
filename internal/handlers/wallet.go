package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"mentorly-backend/internal/middleware"
	"mentorly-backend/internal/models"
	"mentorly-backend/internal/services"
)

type WalletHandler struct {
	walletService *services.WalletService
}

func NewWalletHandler(walletService *services.WalletService) *WalletHandler {
	return &WalletHandler{walletService: walletService}
}

func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())

	balance, err := h.walletService.Balance(r.Context(), authCtx.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"balance": balance})
}

func (h *WalletHandler) History(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	records, err := h.walletService.History(r.Context(), authCtx.UserID, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

// Grant credits or deducts tokens on a user's account. Admin only.
func (h *WalletHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req models.GrantTokensRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	record, err := h.walletService.Grant(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}
