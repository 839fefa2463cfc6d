package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mentorly-backend/internal/models"
)

// ErrInsufficientTokens is returned by Debit when the account balance cannot
// cover the requested amount. No mutation happens in that case.
var ErrInsufficientTokens = errors.New("insufficient token balance")

type TokenRepo interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int, error)
	Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (before, after int, err error)
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (before, after int, err error)
	InsertUsage(ctx context.Context, tx pgx.Tx, rec *models.TokenUsageRecord) error
	GetBookingUsage(ctx context.Context, slotID uuid.UUID) (*models.TokenUsageRecord, error)
	HasRefundForSlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) (bool, error)
	ListUsage(ctx context.Context, userID uuid.UUID, limit int) ([]models.TokenUsageRecord, error)
}

type pgTokenRepo struct {
	pool *pgxpool.Pool
}

func NewTokenRepo(pool *pgxpool.Pool) TokenRepo {
	return &pgTokenRepo{pool: pool}
}

func (r *pgTokenRepo) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	var balance int
	err := r.pool.QueryRow(ctx,
		"SELECT balance FROM token_accounts WHERE user_id = $1", userID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read token balance: %w", err)
	}
	return balance, nil
}

// Debit lowers the balance atomically. The balance check happens inside the
// same statement as the mutation, so the balance can never go negative even
// under concurrent debits.
func (r *pgTokenRepo) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (int, int, error) {
	var after int
	err := tx.QueryRow(ctx, `
		UPDATE token_accounts
		SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance
	`, userID, amount).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, ErrInsufficientTokens
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to debit tokens: %w", err)
	}
	return after + amount, after, nil
}

func (r *pgTokenRepo) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (int, int, error) {
	var after int
	err := tx.QueryRow(ctx, `
		INSERT INTO token_accounts (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = token_accounts.balance + $2, updated_at = NOW()
		RETURNING balance
	`, userID, amount).Scan(&after)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to credit tokens: %w", err)
	}
	return after - amount, after, nil
}

func (r *pgTokenRepo) InsertUsage(ctx context.Context, tx pgx.Tx, rec *models.TokenUsageRecord) error {
	rec.ID = uuid.New()
	err := tx.QueryRow(ctx, `
		INSERT INTO token_usage_records
			(id, user_id, slot_id, usage_type, tokens_used, balance_before, balance_after, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, rec.ID, rec.UserID, rec.SlotID, rec.UsageType, rec.TokensUsed,
		rec.BalanceBefore, rec.BalanceAfter, rec.ReferenceID,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// GetBookingUsage returns the meeting_booking usage record for a slot, or
// nil when the slot was never paid for.
func (r *pgTokenRepo) GetBookingUsage(ctx context.Context, slotID uuid.UUID) (*models.TokenUsageRecord, error) {
	rec := &models.TokenUsageRecord{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, slot_id, usage_type, tokens_used, balance_before, balance_after, reference_id, created_at
		FROM token_usage_records
		WHERE slot_id = $1 AND usage_type = $2
		ORDER BY created_at
		LIMIT 1
	`, slotID, models.UsageMeetingBooking).Scan(
		&rec.ID, &rec.UserID, &rec.SlotID, &rec.UsageType, &rec.TokensUsed,
		&rec.BalanceBefore, &rec.BalanceAfter, &rec.ReferenceID, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read booking usage record: %w", err)
	}
	return rec, nil
}

func (r *pgTokenRepo) HasRefundForSlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM token_usage_records
			WHERE slot_id = $1 AND usage_type = $2
		)
	`, slotID, models.UsageRefund).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check refund record: %w", err)
	}
	return exists, nil
}

func (r *pgTokenRepo) ListUsage(ctx context.Context, userID uuid.UUID, limit int) ([]models.TokenUsageRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, slot_id, usage_type, tokens_used, balance_before, balance_after, reference_id, created_at
		FROM token_usage_records
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	records := make([]models.TokenUsageRecord, 0)
	for rows.Next() {
		var rec models.TokenUsageRecord
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.SlotID, &rec.UsageType, &rec.TokensUsed,
			&rec.BalanceBefore, &rec.BalanceAfter, &rec.ReferenceID, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
