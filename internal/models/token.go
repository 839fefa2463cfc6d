package models

import (
	"time"

	"github.com/google/uuid"
)

type UsageType string

const (
	UsageMeetingBooking UsageType = "meeting_booking"
	UsagePenalty        UsageType = "penalty"
	UsageRefund         UsageType = "refund"
	UsageBonus          UsageType = "bonus"
)

// TokenAccount holds a user's purchasable session credits. One token buys
// one session. The balance is mutated only through debit/credit operations
// and never goes negative.
type TokenAccount struct {
	UserID    uuid.UUID  `json:"user_id"`
	Balance   int        `json:"balance"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TokenUsageRecord is an immutable audit row recording one balance-changing
// event. Created once per mutation, never updated or deleted.
type TokenUsageRecord struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	SlotID        *uuid.UUID `json:"slot_id,omitempty"`
	UsageType     UsageType  `json:"usage_type"`
	TokensUsed    int        `json:"tokens_used"`
	BalanceBefore int        `json:"balance_before"`
	BalanceAfter  int        `json:"balance_after"`
	ReferenceID   *string    `json:"reference_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type GrantTokensRequest struct {
	UserID    uuid.UUID `json:"user_id"`
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	UsageType UsageType `json:"usage_type"`
}
