package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mentorly-backend/internal/models"
	"mentorly-backend/internal/notify"
	"mentorly-backend/internal/repository"
)

const (
	msgSlotUnavailable    = "This time slot is not available for booking"
	msgInsufficientTokens = "Insufficient tokens to book this slot"
)

// EventPublisher decouples the ledger services from notification delivery.
// Publishing happens after commit and is never awaited.
type EventPublisher interface {
	Publish(ctx context.Context, event notify.Event)
}

// BookingService owns slot availability and reservation. Reserving a slot is
// the one place where slot assignment, token debit and the usage audit row
// must all commit together.
type BookingService struct {
	db     DB
	slots  repository.SlotRepo
	tokens repository.TokenRepo
	events EventPublisher
}

func NewBookingService(db DB, slots repository.SlotRepo, tokens repository.TokenRepo, events EventPublisher) *BookingService {
	return &BookingService{db: db, slots: slots, tokens: tokens, events: events}
}

// MarkAvailable declares availability windows for a mentor. Re-declaring an
// existing window is a no-op that restores is_available on unbooked slots.
func (s *BookingService) MarkAvailable(ctx context.Context, mentorID uuid.UUID, windows []models.AvailabilityWindow) ([]models.Slot, error) {
	if len(windows) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"windows": "At least one availability window is required"}}
	}
	for _, w := range windows {
		if w.Start.IsZero() || w.End.IsZero() {
			return nil, &ValidationError{Fields: map[string]string{"windows": "Window start and end are required"}}
		}
		if !w.End.After(w.Start) {
			return nil, &ValidationError{Fields: map[string]string{"windows": "Window end must be after start"}}
		}
	}

	slots := make([]models.Slot, 0, len(windows))
	for _, w := range windows {
		slot, err := s.slots.CreateOrRestore(ctx, mentorID, w.Start, w.End)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *slot)
	}
	return slots, nil
}

// RemoveAvailability hides unbooked slots. Slots with an assigned student
// are immune; the returned count covers only the rows actually released.
func (s *BookingService) RemoveAvailability(ctx context.Context, mentorID uuid.UUID, slotIDs []uuid.UUID) (int64, error) {
	if len(slotIDs) == 0 {
		return 0, &ValidationError{Fields: map[string]string{"slot_ids": "At least one slot id is required"}}
	}
	return s.slots.Release(ctx, mentorID, slotIDs)
}

// Reserve claims an available slot for a student and debits one token, all
// in a single transaction. The row lock taken while locating the slot makes
// exactly one of two concurrent reservations win; the loser sees the slot
// as unavailable and its balance stays untouched.
func (s *BookingService) Reserve(ctx context.Context, studentID uuid.UUID, req models.BookingRequest) (*models.Slot, error) {
	fieldErrors := make(map[string]string)
	if req.MentorID == uuid.Nil {
		fieldErrors["mentor_id"] = "Mentor id is required"
	}
	if req.StartDateTime.IsZero() || req.EndDateTime.IsZero() {
		fieldErrors["start_datetime"] = "Start and end datetimes are required"
	} else if !req.EndDateTime.After(req.StartDateTime) {
		fieldErrors["end_datetime"] = "End must be after start"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	slot, err := s.slots.FindAvailableForUpdate(ctx, tx, req.MentorID, req.StartDateTime, req.EndDateTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ConflictError{Message: msgSlotUnavailable}
	}
	if err != nil {
		return nil, err
	}

	before, after, err := s.tokens.Debit(ctx, tx, studentID, 1)
	if errors.Is(err, repository.ErrInsufficientTokens) {
		return nil, &ConflictError{Message: msgInsufficientTokens}
	}
	if err != nil {
		return nil, err
	}

	if err := s.slots.Assign(ctx, tx, slot.ID, studentID); err != nil {
		return nil, err
	}

	rec := &models.TokenUsageRecord{
		UserID:        studentID,
		SlotID:        &slot.ID,
		UsageType:     models.UsageMeetingBooking,
		TokensUsed:    1,
		BalanceBefore: before,
		BalanceAfter:  after,
	}
	if err := s.tokens.InsertUsage(ctx, tx, rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	slot.StudentID = &studentID
	slot.Status = models.SlotConfirmed
	slot.IsAvailable = false

	if s.events != nil {
		s.events.Publish(ctx, notify.Event{
			Type:   notify.EventBookingConfirmed,
			UserID: slot.MentorID,
			SlotID: &slot.ID,
		})
	}
	return slot, nil
}

func (s *BookingService) AvailableSlots(ctx context.Context, mentorID uuid.UUID) ([]models.Slot, error) {
	return s.slots.ListAvailableForMentor(ctx, mentorID, time.Now().Add(-time.Hour))
}

func (s *BookingService) MentorSchedule(ctx context.Context, mentorID uuid.UUID) ([]models.Slot, error) {
	return s.slots.ListForMentor(ctx, mentorID)
}

func (s *BookingService) StudentSessions(ctx context.Context, studentID uuid.UUID) ([]models.Slot, error) {
	return s.slots.ListForStudent(ctx, studentID)
}
