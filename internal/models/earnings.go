package models

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionEarning    TransactionType = "earning"
	TransactionWithdrawal TransactionType = "withdrawal"
)

type WithdrawalStatus string

const (
	WithdrawalRequested WithdrawalStatus = "requested"
	WithdrawalInProcess WithdrawalStatus = "in_process"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalCancelled WithdrawalStatus = "cancelled"
)

// MentorEarnings is the per-mentor income aggregate, maintained
// incrementally as sessions complete and withdrawals move funds out.
type MentorEarnings struct {
	MentorID         uuid.UUID `json:"mentor_id"`
	TotalEarnings    int64     `json:"total_earnings"`
	AvailableBalance int64     `json:"available_balance"`
	WithdrawnAmount  int64     `json:"withdrawn_amount"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MentorTransaction is an immutable-once-created ledger row. Earnings carry
// a slot id and at most one earning row exists per slot; withdrawals carry a
// payout status, method and destination.
type MentorTransaction struct {
	ID            uuid.UUID         `json:"id"`
	MentorID      uuid.UUID         `json:"mentor_id"`
	Type          TransactionType   `json:"type"`
	Amount        int64             `json:"amount"`
	Status        *WithdrawalStatus `json:"status,omitempty"`
	SlotID        *uuid.UUID        `json:"slot_id,omitempty"`
	PaymentMethod *string           `json:"payment_method,omitempty"`
	Destination   *string           `json:"destination,omitempty"`
	ExternalRef   *string           `json:"external_ref,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

type WithdrawalRequest struct {
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	Destination   string `json:"destination"`
}

type CompleteWithdrawalRequest struct {
	ExternalRef string `json:"external_ref"`
}
