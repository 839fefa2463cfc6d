package models

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotTentative             SlotStatus = "tentative"
	SlotConfirmed             SlotStatus = "confirmed"
	SlotCancellationRequested SlotStatus = "cancellation_requested"
	SlotCancelled             SlotStatus = "cancelled"
	SlotCompleted             SlotStatus = "completed"
)

// Slot is a single scheduled mentor/student session window, the central
// booking unit. A slot is created when a mentor marks availability, claimed
// by at most one student, and is never deleted.
type Slot struct {
	ID                 uuid.UUID  `json:"id"`
	MentorID           uuid.UUID  `json:"mentor_id"`
	StudentID          *uuid.UUID `json:"student_id,omitempty"`
	ScheduledStart     time.Time  `json:"scheduled_start"`
	ScheduledEnd       time.Time  `json:"scheduled_end"`
	IsAvailable        bool       `json:"is_available"`
	Status             SlotStatus `json:"status"`
	ActualStartTime    *time.Time `json:"actual_start_time,omitempty"`
	ActualEndTime      *time.Time `json:"actual_end_time,omitempty"`
	DurationMinutes    *int       `json:"duration_minutes,omitempty"`
	EarningsCredited   bool       `json:"earnings_credited"`
	EarningsCreditedAt *time.Time `json:"earnings_credited_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

type AvailabilityWindow struct {
	Start time.Time `json:"start_datetime"`
	End   time.Time `json:"end_datetime"`
}

type MarkAvailabilityRequest struct {
	Windows []AvailabilityWindow `json:"windows"`
}

type RemoveAvailabilityRequest struct {
	SlotIDs []uuid.UUID `json:"slot_ids"`
}

type BookingRequest struct {
	MentorID      uuid.UUID `json:"mentor_id"`
	StartDateTime time.Time `json:"start_datetime"`
	EndDateTime   time.Time `json:"end_datetime"`
}
