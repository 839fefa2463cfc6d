package services

import (
	"context"

	"github.com/google/uuid"

	"mentorly-backend/internal/models"
	"mentorly-backend/internal/repository"
)

// WalletService owns per-user token accounts: an integer balance plus an
// append-only usage ledger. Every balance change writes exactly one usage
// record with consistent before/after values, inside the same transaction.
type WalletService struct {
	db     DB
	tokens repository.TokenRepo
}

func NewWalletService(db DB, tokens repository.TokenRepo) *WalletService {
	return &WalletService{db: db, tokens: tokens}
}

// Balance returns 0 for users without an account row.
func (s *WalletService) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.tokens.GetBalance(ctx, userID)
}

// Grant credits tokens outside the booking flow (admin bonus or penalty
// reversal). Credit is not inherently idempotent; callers carry the
// dedup responsibility, which is why refunds go through the cancellation
// workflow instead of here.
func (s *WalletService) Grant(ctx context.Context, req models.GrantTokensRequest) (*models.TokenUsageRecord, error) {
	fieldErrors := make(map[string]string)
	if req.UserID == uuid.Nil {
		fieldErrors["user_id"] = "User id is required"
	}
	if req.Amount <= 0 {
		fieldErrors["amount"] = "Amount must be positive"
	}
	usageType := req.UsageType
	if usageType == "" {
		usageType = models.UsageBonus
	}
	if usageType != models.UsageBonus && usageType != models.UsagePenalty {
		fieldErrors["usage_type"] = "Usage type must be bonus or penalty"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	before, after, err := s.tokens.Credit(ctx, tx, req.UserID, req.Amount)
	if err != nil {
		return nil, err
	}

	rec := &models.TokenUsageRecord{
		UserID:        req.UserID,
		UsageType:     usageType,
		TokensUsed:    req.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
	}
	if req.Reason != "" {
		rec.ReferenceID = &req.Reason
	}
	if err := s.tokens.InsertUsage(ctx, tx, rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *WalletService) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.TokenUsageRecord, error) {
	return s.tokens.ListUsage(ctx, userID, limit)
}
