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

type WithdrawalHandler struct {
	withdrawalService *services.WithdrawalService
}

func NewWithdrawalHandler(withdrawalService *services.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalService: withdrawalService}
}

// Request reserves part of the mentor's available balance for payout.
func (h *WithdrawalHandler) Request(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())

	var req models.WithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	txn, err := h.withdrawalService.Request(r.Context(), authCtx.UserID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, txn)
}

func (h *WithdrawalHandler) List(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())

	var status *models.WithdrawalStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := models.WithdrawalStatus(v)
		status = &s
	}

	txns, err := h.withdrawalService.List(r.Context(), authCtx.UserID, status)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"withdrawals": txns})
}

// Complete marks a payout as settled with the external payment reference. Admin only.
func (h *WithdrawalHandler) Complete(w http.ResponseWriter, r *http.Request) {
	txnID, err := uuid.Parse(chi.URLParam(r, "txnID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid withdrawal ID", r))
		return
	}

	var req models.CompleteWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	txn, err := h.withdrawalService.Complete(r.Context(), txnID, req.ExternalRef)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, txn)
}

// Cancel voids a requested payout and restores the reserved balance. Admin only.
func (h *WithdrawalHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	txnID, err := uuid.Parse(chi.URLParam(r, "txnID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid withdrawal ID", r))
		return
	}

	txn, err := h.withdrawalService.Cancel(r.Context(), txnID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, txn)
}
