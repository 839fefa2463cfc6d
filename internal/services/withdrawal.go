package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mentorly-backend/internal/models"
	"mentorly-backend/internal/notify"
	"mentorly-backend/internal/repository"
)

// WithdrawalService handles mentor payout requests against the earnings
// ledger. Funds are reserved (available balance decremented) at request
// time; completing moves them into withdrawn_amount, cancelling restores
// them.
type WithdrawalService struct {
	db       DB
	earnings repository.EarningsRepo
	events   EventPublisher
}

func NewWithdrawalService(db DB, earnings repository.EarningsRepo, events EventPublisher) *WithdrawalService {
	return &WithdrawalService{db: db, earnings: earnings, events: events}
}

func (s *WithdrawalService) Request(ctx context.Context, mentorID uuid.UUID, req models.WithdrawalRequest) (*models.MentorTransaction, error) {
	fieldErrors := make(map[string]string)
	if req.Amount <= 0 {
		fieldErrors["amount"] = "Amount must be positive"
	}
	if req.PaymentMethod != "UPI" && req.PaymentMethod != "Bank" {
		fieldErrors["payment_method"] = "Payment method must be UPI or Bank"
	}
	if req.Destination == "" {
		fieldErrors["destination"] = "Destination is required"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	txn, err := s.earnings.ReserveWithdrawal(ctx, tx, mentorID, req.Amount, req.PaymentMethod, req.Destination)
	if errors.Is(err, repository.ErrInsufficientBalance) {
		return nil, &ConflictError{Message: "Insufficient balance for withdrawal"}
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.Publish(ctx, notify.Event{
			Type:   notify.EventWithdrawalRequested,
			UserID: mentorID,
			Data:   map[string]interface{}{"amount": req.Amount, "transaction_id": txn.ID},
		})
	}
	return txn, nil
}

// Complete is the administrative confirmation that the payout went out.
func (s *WithdrawalService) Complete(ctx context.Context, txnID uuid.UUID, externalRef string) (*models.MentorTransaction, error) {
	if externalRef == "" {
		return nil, &ValidationError{Fields: map[string]string{"external_ref": "External reference is required"}}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	txn, err := s.earnings.CompleteWithdrawal(ctx, tx, txnID, externalRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "Withdrawal transaction not found"}
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.Publish(ctx, notify.Event{
			Type:   notify.EventWithdrawalCompleted,
			UserID: txn.MentorID,
			Data:   map[string]interface{}{"amount": -txn.Amount, "transaction_id": txn.ID},
		})
	}
	return txn, nil
}

// Cancel voids a still-requested withdrawal and returns the reserved funds
// to the mentor's available balance.
func (s *WithdrawalService) Cancel(ctx context.Context, txnID uuid.UUID) (*models.MentorTransaction, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	txn, err := s.earnings.CancelWithdrawal(ctx, tx, txnID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "Withdrawal transaction not found or not cancellable"}
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.Publish(ctx, notify.Event{
			Type:   notify.EventWithdrawalCancelled,
			UserID: txn.MentorID,
			Data:   map[string]interface{}{"amount": -txn.Amount, "transaction_id": txn.ID},
		})
	}
	return txn, nil
}

func (s *WithdrawalService) List(ctx context.Context, mentorID uuid.UUID, status *models.WithdrawalStatus) ([]models.MentorTransaction, error) {
	return s.earnings.ListWithdrawals(ctx, mentorID, status)
}
