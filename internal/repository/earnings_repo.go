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

// ErrInsufficientBalance is returned when a withdrawal asks for more than
// the mentor's available balance. The reservation statement guards the
// balance, so it cannot go negative under concurrent requests.
var ErrInsufficientBalance = errors.New("insufficient available balance")

const transactionColumns = `id, mentor_id, type, amount, status, slot_id,
	payment_method, destination, external_ref, completed_at, created_at`

type EarningsRepo interface {
	GetForMentor(ctx context.Context, mentorID uuid.UUID) (*models.MentorEarnings, error)
	HasEarningForSlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) (bool, error)
	ApplyEarning(ctx context.Context, tx pgx.Tx, mentorID, slotID uuid.UUID, amount int64) (*models.MentorTransaction, error)
	ReserveWithdrawal(ctx context.Context, tx pgx.Tx, mentorID uuid.UUID, amount int64, method, destination string) (*models.MentorTransaction, error)
	CompleteWithdrawal(ctx context.Context, tx pgx.Tx, txnID uuid.UUID, externalRef string) (*models.MentorTransaction, error)
	CancelWithdrawal(ctx context.Context, tx pgx.Tx, txnID uuid.UUID) (*models.MentorTransaction, error)
	ListWithdrawals(ctx context.Context, mentorID uuid.UUID, status *models.WithdrawalStatus) ([]models.MentorTransaction, error)
	ListTransactions(ctx context.Context, mentorID uuid.UUID, limit int) ([]models.MentorTransaction, error)
}

type pgEarningsRepo struct {
	pool *pgxpool.Pool
}

func NewEarningsRepo(pool *pgxpool.Pool) EarningsRepo {
	return &pgEarningsRepo{pool: pool}
}

// GetForMentor returns a zero-valued aggregate when the mentor has never
// earned anything yet.
func (r *pgEarningsRepo) GetForMentor(ctx context.Context, mentorID uuid.UUID) (*models.MentorEarnings, error) {
	e := &models.MentorEarnings{MentorID: mentorID}
	err := r.pool.QueryRow(ctx, `
		SELECT total_earnings, available_balance, withdrawn_amount, updated_at
		FROM mentor_earnings WHERE mentor_id = $1
	`, mentorID).Scan(&e.TotalEarnings, &e.AvailableBalance, &e.WithdrawnAmount, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return e, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mentor earnings: %w", err)
	}
	return e, nil
}

func (r *pgEarningsRepo) HasEarningForSlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM mentor_transactions
			WHERE slot_id = $1 AND type = $2
		)
	`, slotID, models.TransactionEarning).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check earning transaction: %w", err)
	}
	return exists, nil
}

// ApplyEarning raises the mentor aggregate and appends the earning row. The
// partial unique index on (slot_id) WHERE type='earning' backs the
// one-earning-per-slot invariant at the storage level too.
func (r *pgEarningsRepo) ApplyEarning(ctx context.Context, tx pgx.Tx, mentorID, slotID uuid.UUID, amount int64) (*models.MentorTransaction, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO mentor_earnings (mentor_id, total_earnings, available_balance, withdrawn_amount)
		VALUES ($1, $2, $2, 0)
		ON CONFLICT (mentor_id) DO UPDATE
		SET total_earnings = mentor_earnings.total_earnings + $2,
			available_balance = mentor_earnings.available_balance + $2,
			updated_at = NOW()
	`, mentorID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to apply earning: %w", err)
	}

	txn := &models.MentorTransaction{
		ID:       uuid.New(),
		MentorID: mentorID,
		Type:     models.TransactionEarning,
		Amount:   amount,
		SlotID:   &slotID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO mentor_transactions (id, mentor_id, type, amount, slot_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, txn.ID, txn.MentorID, txn.Type, txn.Amount, txn.SlotID).Scan(&txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert earning transaction: %w", err)
	}
	return txn, nil
}

// ReserveWithdrawal decrements available_balance and records the withdrawal
// in one transaction, so the funds are held from the moment of the request.
func (r *pgEarningsRepo) ReserveWithdrawal(ctx context.Context, tx pgx.Tx, mentorID uuid.UUID, amount int64, method, destination string) (*models.MentorTransaction, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE mentor_earnings
		SET available_balance = available_balance - $2, updated_at = NOW()
		WHERE mentor_id = $1 AND available_balance >= $2
	`, mentorID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve withdrawal funds: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrInsufficientBalance
	}

	status := models.WithdrawalRequested
	txn := &models.MentorTransaction{
		ID:            uuid.New(),
		MentorID:      mentorID,
		Type:          models.TransactionWithdrawal,
		Amount:        -amount,
		Status:        &status,
		PaymentMethod: &method,
		Destination:   &destination,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO mentor_transactions (id, mentor_id, type, amount, status, payment_method, destination)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, txn.ID, txn.MentorID, txn.Type, txn.Amount, txn.Status, txn.PaymentMethod, txn.Destination).Scan(&txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert withdrawal transaction: %w", err)
	}
	return txn, nil
}

func (r *pgEarningsRepo) CompleteWithdrawal(ctx context.Context, tx pgx.Tx, txnID uuid.UUID, externalRef string) (*models.MentorTransaction, error) {
	row := tx.QueryRow(ctx, `
		UPDATE mentor_transactions
		SET status = $2, external_ref = $3, completed_at = NOW()
		WHERE id = $1 AND type = $4 AND status IN ($5, $6)
		RETURNING `+transactionColumns+`
	`, txnID, models.WithdrawalCompleted, externalRef, models.TransactionWithdrawal,
		models.WithdrawalRequested, models.WithdrawalInProcess)
	txn, err := scanTransaction(row)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE mentor_earnings
		SET withdrawn_amount = withdrawn_amount + $2, updated_at = NOW()
		WHERE mentor_id = $1
	`, txn.MentorID, -txn.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to record withdrawn amount: %w", err)
	}
	return txn, nil
}

// CancelWithdrawal releases the reserved funds back to available_balance.
// Only still-requested withdrawals can be cancelled.
func (r *pgEarningsRepo) CancelWithdrawal(ctx context.Context, tx pgx.Tx, txnID uuid.UUID) (*models.MentorTransaction, error) {
	row := tx.QueryRow(ctx, `
		UPDATE mentor_transactions
		SET status = $2
		WHERE id = $1 AND type = $3 AND status = $4
		RETURNING `+transactionColumns+`
	`, txnID, models.WithdrawalCancelled, models.TransactionWithdrawal, models.WithdrawalRequested)
	txn, err := scanTransaction(row)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE mentor_earnings
		SET available_balance = available_balance + $2, updated_at = NOW()
		WHERE mentor_id = $1
	`, txn.MentorID, -txn.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to restore available balance: %w", err)
	}
	return txn, nil
}

func (r *pgEarningsRepo) ListWithdrawals(ctx context.Context, mentorID uuid.UUID, status *models.WithdrawalStatus) ([]models.MentorTransaction, error) {
	query := "SELECT " + transactionColumns + ` FROM mentor_transactions
		WHERE mentor_id = $1 AND type = $2`
	args := []interface{}{mentorID, models.TransactionWithdrawal}
	if status != nil {
		query += " AND status = $3"
		args = append(args, *status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return collectTransactions(rows)
}

func (r *pgEarningsRepo) ListTransactions(ctx context.Context, mentorID uuid.UUID, limit int) ([]models.MentorTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		"SELECT "+transactionColumns+" FROM mentor_transactions WHERE mentor_id = $1 ORDER BY created_at DESC LIMIT $2",
		mentorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return collectTransactions(rows)
}

func scanTransaction(row pgx.Row) (*models.MentorTransaction, error) {
	txn := &models.MentorTransaction{}
	err := row.Scan(
		&txn.ID, &txn.MentorID, &txn.Type, &txn.Amount, &txn.Status, &txn.SlotID,
		&txn.PaymentMethod, &txn.Destination, &txn.ExternalRef, &txn.CompletedAt, &txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func collectTransactions(rows pgx.Rows) ([]models.MentorTransaction, error) {
	defer rows.Close()
	txns := make([]models.MentorTransaction, 0)
	for rows.Next() {
		var txn models.MentorTransaction
		if err := rows.Scan(
			&txn.ID, &txn.MentorID, &txn.Type, &txn.Amount, &txn.Status, &txn.SlotID,
			&txn.PaymentMethod, &txn.Destination, &txn.ExternalRef, &txn.CompletedAt, &txn.CreatedAt,
		); err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}
