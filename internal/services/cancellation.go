package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mentorly-backend/internal/middleware"
	"mentorly-backend/internal/models"
	"mentorly-backend/internal/notify"
	"mentorly-backend/internal/repository"
)

// CancellationService is the state machine moving a booked session toward
// cancellation:
//
//	confirmed -> cancellation_requested   (the booked student)
//	cancellation_requested -> cancelled   (the assigned mentor, refunds)
//	confirmed -> cancelled                (the assigned mentor, refunds)
//
// completed is terminal and unreachable from here. Actor checks run inside
// the workflow even though the routes gate on role as well.
type CancellationService struct {
	db     DB
	slots  repository.SlotRepo
	tokens repository.TokenRepo
	events EventPublisher
}

func NewCancellationService(db DB, slots repository.SlotRepo, tokens repository.TokenRepo, events EventPublisher) *CancellationService {
	return &CancellationService{db: db, slots: slots, tokens: tokens, events: events}
}

// RequestCancellation moves a confirmed session to cancellation_requested.
// Only the booked student may request, and only on their own session.
func (s *CancellationService) RequestCancellation(ctx context.Context, actor middleware.AuthContext, slotID uuid.UUID) (*models.Slot, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	slot, err := s.slots.GetByIDForUpdate(ctx, tx, slotID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "Meeting not found"}
	}
	if err != nil {
		return nil, err
	}

	if actor.Role != models.RoleStudent || slot.StudentID == nil || *slot.StudentID != actor.UserID {
		return nil, &ForbiddenError{Message: "Only the booked student may request cancellation"}
	}
	if slot.Status != models.SlotConfirmed {
		return nil, &ConflictError{Message: "Only confirmed meetings can be moved to cancellation requested"}
	}

	if err := s.slots.UpdateStatus(ctx, tx, slot.ID, models.SlotCancellationRequested); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	slot.Status = models.SlotCancellationRequested

	if s.events != nil {
		s.events.Publish(ctx, notify.Event{
			Type:   notify.EventCancellationRequested,
			UserID: slot.MentorID,
			SlotID: &slot.ID,
		})
	}
	return slot, nil
}

// ApproveCancellation finalizes a student-requested cancellation.
func (s *CancellationService) ApproveCancellation(ctx context.Context, actor middleware.AuthContext, slotID uuid.UUID) (*models.Slot, error) {
	return s.cancel(ctx, actor, slotID, models.SlotCancellationRequested)
}

// CancelDirect lets the mentor cancel a confirmed session without a prior
// student request.
func (s *CancellationService) CancelDirect(ctx context.Context, actor middleware.AuthContext, slotID uuid.UUID) (*models.Slot, error) {
	return s.cancel(ctx, actor, slotID, models.SlotConfirmed)
}

// cancel performs the terminal transition and refunds the student's token.
// The refund is deduplicated on the slot: at most one refund usage record
// ever exists per slot, so a retried approval can't pay the student twice.
func (s *CancellationService) cancel(ctx context.Context, actor middleware.AuthContext, slotID uuid.UUID, fromStatus models.SlotStatus) (*models.Slot, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	slot, err := s.slots.GetByIDForUpdate(ctx, tx, slotID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "Meeting not found"}
	}
	if err != nil {
		return nil, err
	}

	if actor.Role != models.RoleMentor || slot.MentorID != actor.UserID {
		return nil, &ForbiddenError{Message: "Only the assigned mentor may cancel this meeting"}
	}
	if slot.Status == models.SlotCompleted {
		return nil, &ConflictError{Message: "A completed meeting cannot be cancelled"}
	}
	if slot.Status != fromStatus {
		return nil, &ConflictError{Message: "Meeting is not in a cancellable state"}
	}

	if err := s.slots.UpdateStatus(ctx, tx, slot.ID, models.SlotCancelled); err != nil {
		return nil, err
	}

	if slot.StudentID != nil {
		refunded, err := s.tokens.HasRefundForSlot(ctx, tx, slot.ID)
		if err != nil {
			return nil, err
		}
		if !refunded {
			before, after, err := s.tokens.Credit(ctx, tx, *slot.StudentID, 1)
			if err != nil {
				return nil, err
			}
			rec := &models.TokenUsageRecord{
				UserID:        *slot.StudentID,
				SlotID:        &slot.ID,
				UsageType:     models.UsageRefund,
				TokensUsed:    1,
				BalanceBefore: before,
				BalanceAfter:  after,
			}
			if err := s.tokens.InsertUsage(ctx, tx, rec); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	slot.Status = models.SlotCancelled

	if s.events != nil && slot.StudentID != nil {
		s.events.Publish(ctx, notify.Event{
			Type:   notify.EventSessionCancelled,
			UserID: *slot.StudentID,
			SlotID: &slot.ID,
		})
	}
	return slot, nil
}
