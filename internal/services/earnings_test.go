package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"mentorly-backend/internal/models"
	"mentorly-backend/internal/notify"
)

func newEarningsFixture() (*EarningsService, *fakeSlotRepo, *fakeTokenRepo, *fakeEarningsRepo, *fakeEvents) {
	db := &fakeDB{}
	slots := newFakeSlotRepo()
	tokens := newFakeTokenRepo()
	earnings := newFakeEarningsRepo()
	events := &fakeEvents{}
	return NewEarningsService(db, slots, tokens, earnings, events), slots, tokens, earnings, events
}

func bookedSlot(slots *fakeSlotRepo, tokens *fakeTokenRepo, mentorID, studentID uuid.UUID, tokensUsed int) *models.Slot {
	slot := slots.add(&models.Slot{
		MentorID:       mentorID,
		StudentID:      &studentID,
		ScheduledStart: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		ScheduledEnd:   time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC),
		Status:         models.SlotConfirmed,
	})
	tokens.usage = append(tokens.usage, models.TokenUsageRecord{
		UserID:     studentID,
		SlotID:     &slot.ID,
		UsageType:  models.UsageMeetingBooking,
		TokensUsed: tokensUsed,
	})
	return slot
}

func TestStartMeetingStampsOnce(t *testing.T) {
	svc, slots, tokens, _, _ := newEarningsFixture()
	slot := bookedSlot(slots, tokens, uuid.New(), uuid.New(), 1)

	first, err := svc.StartMeeting(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	if !first.Started {
		t.Fatalf("expected first trigger to start the meeting")
	}

	second, err := svc.StartMeeting(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("expected repeated start to succeed, got %v", err)
	}
	if second.Started {
		t.Fatalf("expected second trigger to report already started")
	}
	if !second.StartTime.Equal(first.StartTime) {
		t.Fatalf("expected both triggers to report the same start time")
	}
}

func TestStartMeetingUnknownSlot(t *testing.T) {
	svc, _, _, _, _ := newEarningsFixture()
	_, err := svc.StartMeeting(context.Background(), uuid.New())
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestCompleteSessionCreditsEarnings(t *testing.T) {
	svc, slots, tokens, earnings, events := newEarningsFixture()
	mentorID := uuid.New()
	slot := bookedSlot(slots, tokens, mentorID, uuid.New(), 1)

	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	slot.ActualStartTime = &start
	end := start.Add(45*time.Minute + 30*time.Second)

	result, err := svc.CompleteSession(context.Background(), slot.ID, &end)
	if err != nil {
		t.Fatalf("expected completion to succeed, got %v", err)
	}
	if !result.Completed || result.AlreadyCompleted {
		t.Fatalf("expected a fresh completion, got %+v", result)
	}
	if result.DurationMinutes != 45 {
		t.Fatalf("expected sub-minute remainder dropped, got %d minutes", result.DurationMinutes)
	}
	if result.EarningsAmount != 1*EarningsPerToken {
		t.Fatalf("expected earnings %d, got %d", EarningsPerToken, result.EarningsAmount)
	}

	agg, _ := earnings.GetForMentor(context.Background(), mentorID)
	if agg.TotalEarnings != EarningsPerToken || agg.AvailableBalance != EarningsPerToken {
		t.Fatalf("expected mentor aggregate credited, got %+v", agg)
	}

	stored := slots.slots[slot.ID]
	if stored.Status != models.SlotCompleted || !stored.EarningsCredited {
		t.Fatalf("expected slot persisted as completed and credited")
	}

	completed := events.ofType(notify.EventSessionCompleted)
	if len(completed) != 1 || completed[0].UserID != mentorID {
		t.Fatalf("expected one session_completed event addressed to the mentor")
	}
}

func TestCompleteSessionIdempotent(t *testing.T) {
	svc, slots, tokens, earnings, events := newEarningsFixture()
	mentorID := uuid.New()
	slot := bookedSlot(slots, tokens, mentorID, uuid.New(), 1)

	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	slot.ActualStartTime = &start
	end := start.Add(30 * time.Minute)

	if _, err := svc.CompleteSession(context.Background(), slot.ID, &end); err != nil {
		t.Fatalf("expected first completion to succeed, got %v", err)
	}

	// The racing second trigger.
	later := end.Add(5 * time.Second)
	result, err := svc.CompleteSession(context.Background(), slot.ID, &later)
	if err != nil {
		t.Fatalf("expected second completion to succeed, got %v", err)
	}
	if !result.AlreadyCompleted || !result.EarningsCredited {
		t.Fatalf("expected already-completed result, got %+v", result)
	}
	if result.DurationMinutes != 30 {
		t.Fatalf("expected original duration preserved, got %d", result.DurationMinutes)
	}

	if earnings.earningCount() != 1 {
		t.Fatalf("expected exactly one earning transaction, got %d", earnings.earningCount())
	}
	agg, _ := earnings.GetForMentor(context.Background(), mentorID)
	if agg.TotalEarnings != EarningsPerToken {
		t.Fatalf("expected total earnings unchanged at %d, got %d", EarningsPerToken, agg.TotalEarnings)
	}
	if len(events.ofType(notify.EventSessionCompleted)) != 1 {
		t.Fatalf("expected a single session_completed event")
	}
}

func TestCompleteSessionWithoutBookingRecord(t *testing.T) {
	svc, slots, _, earnings, events := newEarningsFixture()
	studentID := uuid.New()
	slot := slots.add(&models.Slot{
		MentorID:       uuid.New(),
		StudentID:      &studentID,
		ScheduledStart: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		ScheduledEnd:   time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC),
		Status:         models.SlotConfirmed,
	})

	end := slot.ScheduledStart.Add(50 * time.Minute)
	result, err := svc.CompleteSession(context.Background(), slot.ID, &end)
	if err != nil {
		t.Fatalf("expected completion to succeed, got %v", err)
	}
	if !result.Completed || result.EarningsCredited {
		t.Fatalf("expected completion without crediting, got %+v", result)
	}
	if result.Reason == "" {
		t.Fatalf("expected an explanatory reason")
	}
	if earnings.earningCount() != 0 {
		t.Fatalf("expected no earning transactions, got %d", earnings.earningCount())
	}
	if len(events.published) != 0 {
		t.Fatalf("expected no events when nothing was credited")
	}
	if slots.slots[slot.ID].Status != models.SlotCompleted {
		t.Fatalf("expected slot still marked completed")
	}
}

func TestCompleteSessionFallsBackToScheduledStart(t *testing.T) {
	svc, slots, tokens, _, _ := newEarningsFixture()
	slot := bookedSlot(slots, tokens, uuid.New(), uuid.New(), 1)

	// No actual start time was ever stamped.
	end := slot.ScheduledStart.Add(60 * time.Minute)
	result, err := svc.CompleteSession(context.Background(), slot.ID, &end)
	if err != nil {
		t.Fatalf("expected completion to succeed, got %v", err)
	}
	if result.DurationMinutes != 60 {
		t.Fatalf("expected duration from scheduled start, got %d", result.DurationMinutes)
	}
}

func TestCompleteSessionClampsNegativeDuration(t *testing.T) {
	svc, slots, tokens, _, _ := newEarningsFixture()
	slot := bookedSlot(slots, tokens, uuid.New(), uuid.New(), 1)

	end := slot.ScheduledStart.Add(-10 * time.Minute)
	result, err := svc.CompleteSession(context.Background(), slot.ID, &end)
	if err != nil {
		t.Fatalf("expected completion to succeed, got %v", err)
	}
	if result.DurationMinutes != 0 {
		t.Fatalf("expected duration clamped to zero, got %d", result.DurationMinutes)
	}
}

func TestCompleteSessionScalesWithTokensUsed(t *testing.T) {
	svc, slots, tokens, _, _ := newEarningsFixture()
	slot := bookedSlot(slots, tokens, uuid.New(), uuid.New(), 2)

	end := slot.ScheduledStart.Add(30 * time.Minute)
	result, err := svc.CompleteSession(context.Background(), slot.ID, &end)
	if err != nil {
		t.Fatalf("expected completion to succeed, got %v", err)
	}
	if result.EarningsAmount != 2*EarningsPerToken {
		t.Fatalf("expected earnings %d, got %d", 2*EarningsPerToken, result.EarningsAmount)
	}
}
