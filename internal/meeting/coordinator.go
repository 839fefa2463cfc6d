package meeting

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"mentorly-backend/internal/services"
)

// EarningsLedger is the durable side of the live-session lifecycle. Both
// end paths (explicit end, last-participant disconnect) call the same
// idempotent completion, so the coordinator never needs a lock against
// racing triggers from elsewhere.
type EarningsLedger interface {
	StartMeeting(ctx context.Context, slotID uuid.UUID) (*services.StartResult, error)
	CompleteSession(ctx context.Context, slotID uuid.UUID, endTime *time.Time) (*services.CompletionResult, error)
}

type JoinResult struct {
	SlotID    uuid.UUID
	Started   bool
	StartTime time.Time
	Count     int
}

type EndOutcome struct {
	SlotID uuid.UUID
	Result *services.CompletionResult
}

// RoomSummary is the read-only view of a live room exposed over REST.
type RoomSummary struct {
	RoomID           string     `json:"room_id"`
	SlotID           uuid.UUID  `json:"slot_id"`
	MentorID         uuid.UUID  `json:"mentor_id"`
	StudentID        uuid.UUID  `json:"student_id"`
	ParticipantCount int        `json:"participant_count"`
	StartTime        *time.Time `json:"start_time,omitempty"`
}

// Coordinator drives a room through EMPTY -> ACTIVE -> ENDED with discrete
// events. Event handling is serialized; the durable operations it triggers
// carry their own concurrency guards.
type Coordinator struct {
	mu       sync.Mutex
	store    SessionStore
	earnings EarningsLedger
}

func NewCoordinator(store SessionStore, earnings EarningsLedger) *Coordinator {
	return &Coordinator{store: store, earnings: earnings}
}

// ActiveRooms lists the rooms currently held by this process.
func (c *Coordinator) ActiveRooms() []RoomSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	rooms := c.store.List()
	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, RoomSummary{
			RoomID:           room.RoomID,
			SlotID:           room.SlotID,
			MentorID:         room.MentorID,
			StudentID:        room.StudentID,
			ParticipantCount: len(room.Participants),
			StartTime:        room.StartTime,
		})
	}
	return summaries
}

// Initialize creates room state if absent. Calling it again for the same
// room is a no-op.
func (c *Coordinator) Initialize(ctx context.Context, roomID string, slotID, mentorID, studentID uuid.UUID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if roomID == "" {
		return false, ErrInvalidRoomID
	}
	if slotID == uuid.Nil {
		return false, ErrInvalidSlotID
	}
	if mentorID == uuid.Nil || studentID == uuid.Nil {
		return false, ErrInvalidUserRef
	}

	if _, ok := c.store.Get(roomID); ok {
		return false, nil
	}
	c.store.Set(roomID, &Room{
		RoomID:       roomID,
		SlotID:       slotID,
		MentorID:     mentorID,
		StudentID:    studentID,
		Participants: make(map[string]string),
	})
	log.Printf("meeting: room %s initialized for slot %s", roomID, slotID)
	return true, nil
}

// Join adds a participant. The first joiner of a not-yet-started meeting
// triggers the durable start; the result says whether that happened so the
// caller knows to broadcast.
func (c *Coordinator) Join(ctx context.Context, roomID, participantKey, displayName string) (*JoinResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	room, ok := c.store.Get(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}

	room.Participants[participantKey] = displayName
	c.store.Set(roomID, room)

	result := &JoinResult{SlotID: room.SlotID, Count: len(room.Participants)}
	if len(room.Participants) == 1 && room.StartTime == nil {
		start, err := c.earnings.StartMeeting(ctx, room.SlotID)
		if err != nil {
			return nil, err
		}
		room.StartTime = &start.StartTime
		c.store.Set(roomID, room)
		result.Started = start.Started
		result.StartTime = start.StartTime
	} else if room.StartTime != nil {
		result.StartTime = *room.StartTime
	}
	return result, nil
}

// Leave removes a participant. When the room empties after the meeting
// started, the session auto-completes and the room state is discarded. The
// returned outcome is nil when nothing ended.
func (c *Coordinator) Leave(ctx context.Context, roomID, participantKey string) (*EndOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	room, ok := c.store.Get(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	if _, ok := room.Participants[participantKey]; !ok {
		return nil, ErrNotInRoom
	}

	delete(room.Participants, participantKey)
	c.store.Set(roomID, room)

	if len(room.Participants) > 0 || room.StartTime == nil || room.EndTime != nil {
		return nil, nil
	}

	now := time.Now().UTC()
	result, err := c.earnings.CompleteSession(ctx, room.SlotID, &now)
	if err != nil {
		return nil, err
	}
	c.store.Delete(roomID)
	log.Printf("meeting: room %s auto-completed after last participant left", roomID)
	return &EndOutcome{SlotID: room.SlotID, Result: result}, nil
}

// End completes the session regardless of remaining participants and
// discards the room.
func (c *Coordinator) End(ctx context.Context, roomID string) (*EndOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	room, ok := c.store.Get(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}

	now := time.Now().UTC()
	result, err := c.earnings.CompleteSession(ctx, room.SlotID, &now)
	if err != nil {
		return nil, err
	}
	c.store.Delete(roomID)
	log.Printf("meeting: room %s ended for slot %s", roomID, room.SlotID)
	return &EndOutcome{SlotID: room.SlotID, Result: result}, nil
}
