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

// EarningsPerToken is the fixed conversion rate from session tokens to
// currency units credited to the mentor.
const EarningsPerToken = 300

// StartResult distinguishes a first-time start from the informational
// "already started" case.
type StartResult struct {
	Started   bool      `json:"started"`
	StartTime time.Time `json:"start_time"`
}

// CompletionResult reports the outcome of CompleteSession. AlreadyCompleted
// separates "just happened" from "already happened"; both are successes.
type CompletionResult struct {
	Completed        bool   `json:"completed"`
	AlreadyCompleted bool   `json:"already_completed"`
	EarningsCredited bool   `json:"earnings_credited"`
	EarningsAmount   int64  `json:"earnings_amount"`
	DurationMinutes  int    `json:"duration_minutes"`
	Reason           string `json:"reason,omitempty"`
}

// EarningsService converts a completed, paid-for session into mentor income
// exactly once. Its idempotency guards (actual_start_time presence, one
// earning transaction per slot) are what keep the racing end triggers safe.
type EarningsService struct {
	db       DB
	slots    repository.SlotRepo
	tokens   repository.TokenRepo
	earnings repository.EarningsRepo
	events   EventPublisher
}

func NewEarningsService(db DB, slots repository.SlotRepo, tokens repository.TokenRepo, earnings repository.EarningsRepo, events EventPublisher) *EarningsService {
	return &EarningsService{db: db, slots: slots, tokens: tokens, earnings: earnings, events: events}
}

// StartMeeting stamps the live start time. When another trigger already
// started the meeting this reports Started=false with the existing time,
// which is informational, not an error.
func (s *EarningsService) StartMeeting(ctx context.Context, slotID uuid.UUID) (*StartResult, error) {
	slot, err := s.slots.GetByID(ctx, slotID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "Meeting not found"}
	}
	if err != nil {
		return nil, err
	}

	if slot.ActualStartTime != nil {
		return &StartResult{Started: false, StartTime: *slot.ActualStartTime}, nil
	}

	now := time.Now().UTC()
	set, err := s.slots.SetActualStart(ctx, slotID, now)
	if err != nil {
		return nil, err
	}
	if !set {
		// Lost the race against another trigger; report its time.
		slot, err = s.slots.GetByID(ctx, slotID)
		if err != nil {
			return nil, err
		}
		start := now
		if slot.ActualStartTime != nil {
			start = *slot.ActualStartTime
		}
		return &StartResult{Started: false, StartTime: start}, nil
	}
	return &StartResult{Started: true, StartTime: now}, nil
}

// CompleteSession marks the slot completed and credits the mentor. Safe to
// call any number of times from any mix of explicit-end and
// disconnect-triggered auto-completion: the first call pays, every later
// call short-circuits with EarningsCredited=true.
func (s *EarningsService) CompleteSession(ctx context.Context, slotID uuid.UUID, endTime *time.Time) (*CompletionResult, error) {
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

	if slot.Status == models.SlotCompleted && slot.EarningsCredited {
		result := &CompletionResult{
			Completed:        true,
			AlreadyCompleted: true,
			EarningsCredited: true,
		}
		if slot.DurationMinutes != nil {
			result.DurationMinutes = *slot.DurationMinutes
		}
		return result, nil
	}

	start := slot.ScheduledStart
	if slot.ActualStartTime != nil {
		start = *slot.ActualStartTime
	}
	end := time.Now().UTC()
	if endTime != nil {
		end = *endTime
	}
	duration := int(end.Sub(start) / time.Minute)
	if duration < 0 {
		duration = 0
	}

	booking, err := s.tokens.GetBookingUsage(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		// Persist the completion but never guess an amount.
		if err := s.slots.Complete(ctx, tx, slot.ID, start, end, duration, slot.EarningsCredited); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return &CompletionResult{
			Completed:        true,
			EarningsCredited: false,
			DurationMinutes:  duration,
			Reason:           "no booking usage record found for this session",
		}, nil
	}

	amount := int64(booking.TokensUsed) * EarningsPerToken

	credited, err := s.earnings.HasEarningForSlot(ctx, tx, slot.ID)
	if err != nil {
		return nil, err
	}
	justCredited := false
	if !credited {
		if _, err := s.earnings.ApplyEarning(ctx, tx, slot.MentorID, slot.ID, amount); err != nil {
			return nil, err
		}
		justCredited = true
	}

	if err := s.slots.Complete(ctx, tx, slot.ID, start, end, duration, true); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if justCredited && s.events != nil {
		s.events.Publish(ctx, notify.Event{
			Type:   notify.EventSessionCompleted,
			UserID: slot.MentorID,
			SlotID: &slot.ID,
			Data: map[string]interface{}{
				"earnings_amount":  amount,
				"duration_minutes": duration,
			},
		})
	}

	return &CompletionResult{
		Completed:        true,
		EarningsCredited: true,
		EarningsAmount:   amount,
		DurationMinutes:  duration,
	}, nil
}

// Summary returns the mentor's aggregate plus recent ledger rows.
func (s *EarningsService) Summary(ctx context.Context, mentorID uuid.UUID) (*models.MentorEarnings, []models.MentorTransaction, error) {
	earnings, err := s.earnings.GetForMentor(ctx, mentorID)
	if err != nil {
		return nil, nil, err
	}
	transactions, err := s.earnings.ListTransactions(ctx, mentorID, 50)
	if err != nil {
		return nil, nil, err
	}
	return earnings, transactions, nil
}
