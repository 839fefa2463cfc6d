package meeting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"mentorly-backend/internal/services"
)

type fakeLedger struct {
	startCalls    int
	completeCalls int
	startTime     time.Time
	completed     bool
}

func (l *fakeLedger) StartMeeting(ctx context.Context, slotID uuid.UUID) (*services.StartResult, error) {
	l.startCalls++
	if l.startTime.IsZero() {
		l.startTime = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
		return &services.StartResult{Started: true, StartTime: l.startTime}, nil
	}
	return &services.StartResult{Started: false, StartTime: l.startTime}, nil
}

func (l *fakeLedger) CompleteSession(ctx context.Context, slotID uuid.UUID, endTime *time.Time) (*services.CompletionResult, error) {
	l.completeCalls++
	if l.completed {
		return &services.CompletionResult{Completed: true, AlreadyCompleted: true, EarningsCredited: true}, nil
	}
	l.completed = true
	return &services.CompletionResult{
		Completed:        true,
		EarningsCredited: true,
		EarningsAmount:   300,
		DurationMinutes:  45,
	}, nil
}

func newCoordinatorFixture() (*Coordinator, *fakeLedger, SessionStore) {
	ledger := &fakeLedger{}
	store := NewMemoryStore()
	return NewCoordinator(store, ledger), ledger, store
}

func initRoom(t *testing.T, coord *Coordinator) (string, uuid.UUID) {
	t.Helper()
	roomID := "room-" + uuid.NewString()
	slotID := uuid.New()
	created, err := coord.Initialize(context.Background(), roomID, slotID, uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("expected initialize to succeed, got %v", err)
	}
	if !created {
		t.Fatalf("expected a fresh room")
	}
	return roomID, slotID
}

func TestInitializeIsIdempotent(t *testing.T) {
	coord, _, _ := newCoordinatorFixture()
	roomID, slotID := initRoom(t, coord)

	created, err := coord.Initialize(context.Background(), roomID, slotID, uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("expected repeated initialize to succeed, got %v", err)
	}
	if created {
		t.Fatalf("expected repeated initialize to be a no-op")
	}
}

func TestInitializeValidatesInput(t *testing.T) {
	coord, _, _ := newCoordinatorFixture()
	ctx := context.Background()

	if _, err := coord.Initialize(ctx, "", uuid.New(), uuid.New(), uuid.New()); err != ErrInvalidRoomID {
		t.Fatalf("expected invalid room id error, got %v", err)
	}
	if _, err := coord.Initialize(ctx, "room-1", uuid.Nil, uuid.New(), uuid.New()); err != ErrInvalidSlotID {
		t.Fatalf("expected invalid slot id error, got %v", err)
	}
	if _, err := coord.Initialize(ctx, "room-1", uuid.New(), uuid.Nil, uuid.New()); err != ErrInvalidUserRef {
		t.Fatalf("expected invalid user ref error, got %v", err)
	}
}

func TestFirstJoinStartsMeetingOnce(t *testing.T) {
	coord, ledger, _ := newCoordinatorFixture()
	roomID, slotID := initRoom(t, coord)

	first, err := coord.Join(context.Background(), roomID, "student-1", "Asha")
	if err != nil {
		t.Fatalf("expected first join to succeed, got %v", err)
	}
	if !first.Started {
		t.Fatalf("expected first join to start the meeting")
	}
	if first.SlotID != slotID || first.Count != 1 {
		t.Fatalf("unexpected join result %+v", first)
	}

	second, err := coord.Join(context.Background(), roomID, "mentor-1", "Ravi")
	if err != nil {
		t.Fatalf("expected second join to succeed, got %v", err)
	}
	if second.Started {
		t.Fatalf("expected second join not to re-start the meeting")
	}
	if !second.StartTime.Equal(first.StartTime) {
		t.Fatalf("expected second join to see the original start time")
	}
	if ledger.startCalls != 1 {
		t.Fatalf("expected exactly one durable start, got %d", ledger.startCalls)
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	coord, _, _ := newCoordinatorFixture()
	if _, err := coord.Join(context.Background(), "missing", "student-1", "Asha"); err != ErrRoomNotFound {
		t.Fatalf("expected room not found, got %v", err)
	}
}

func TestLastLeaveAutoCompletes(t *testing.T) {
	coord, ledger, store := newCoordinatorFixture()
	roomID, slotID := initRoom(t, coord)
	ctx := context.Background()

	if _, err := coord.Join(ctx, roomID, "student-1", "Asha"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := coord.Join(ctx, roomID, "mentor-1", "Ravi"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	outcome, err := coord.Leave(ctx, roomID, "student-1")
	if err != nil {
		t.Fatalf("expected leave to succeed, got %v", err)
	}
	if outcome != nil {
		t.Fatalf("expected no completion while a participant remains")
	}

	outcome, err = coord.Leave(ctx, roomID, "mentor-1")
	if err != nil {
		t.Fatalf("expected last leave to succeed, got %v", err)
	}
	if outcome == nil || outcome.SlotID != slotID {
		t.Fatalf("expected auto-completion outcome for the slot")
	}
	if ledger.completeCalls != 1 {
		t.Fatalf("expected exactly one durable completion, got %d", ledger.completeCalls)
	}
	if _, ok := store.Get(roomID); ok {
		t.Fatalf("expected room state discarded after completion")
	}
}

func TestLeaveBeforeStartDoesNotComplete(t *testing.T) {
	coord, ledger, _ := newCoordinatorFixture()
	roomID, _ := initRoom(t, coord)
	ctx := context.Background()

	// Force the no-start state: join stamps a start, so simulate a
	// participant tracked without one by initializing and leaving someone
	// who never joined.
	if _, err := coord.Leave(ctx, roomID, "ghost"); err != ErrNotInRoom {
		t.Fatalf("expected not-in-room error, got %v", err)
	}
	if ledger.completeCalls != 0 {
		t.Fatalf("expected no completion, got %d", ledger.completeCalls)
	}
}

func TestEndCompletesWithParticipantsPresent(t *testing.T) {
	coord, ledger, store := newCoordinatorFixture()
	roomID, slotID := initRoom(t, coord)
	ctx := context.Background()

	if _, err := coord.Join(ctx, roomID, "student-1", "Asha"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := coord.Join(ctx, roomID, "mentor-1", "Ravi"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	outcome, err := coord.End(ctx, roomID)
	if err != nil {
		t.Fatalf("expected end to succeed, got %v", err)
	}
	if outcome.SlotID != slotID || !outcome.Result.Completed {
		t.Fatalf("unexpected end outcome %+v", outcome)
	}
	if _, ok := store.Get(roomID); ok {
		t.Fatalf("expected room discarded after end")
	}

	// Post-end leaves find no room and never reach the ledger again.
	if _, err := coord.Leave(ctx, roomID, "mentor-1"); err != ErrRoomNotFound {
		t.Fatalf("expected room not found after end, got %v", err)
	}
	if ledger.completeCalls != 1 {
		t.Fatalf("expected a single durable completion, got %d", ledger.completeCalls)
	}
}

func TestEndUnknownRoom(t *testing.T) {
	coord, _, _ := newCoordinatorFixture()
	if _, err := coord.End(context.Background(), "missing"); err != ErrRoomNotFound {
		t.Fatalf("expected room not found, got %v", err)
	}
}

func TestActiveRoomsReflectsLiveState(t *testing.T) {
	coord, _, _ := newCoordinatorFixture()

	if got := coord.ActiveRooms(); len(got) != 0 {
		t.Fatalf("expected no rooms before initialize, got %d", len(got))
	}

	roomID, slotID := initRoom(t, coord)
	if _, err := coord.Join(context.Background(), roomID, "u1", "Alice"); err != nil {
		t.Fatalf("expected join to succeed, got %v", err)
	}

	rooms := coord.ActiveRooms()
	if len(rooms) != 1 {
		t.Fatalf("expected one live room, got %d", len(rooms))
	}
	if rooms[0].RoomID != roomID || rooms[0].SlotID != slotID {
		t.Fatalf("expected summary for room %s slot %s, got %+v", roomID, slotID, rooms[0])
	}
	if rooms[0].ParticipantCount != 1 {
		t.Fatalf("expected one participant, got %d", rooms[0].ParticipantCount)
	}
	if rooms[0].StartTime == nil {
		t.Fatalf("expected a start time on a started room")
	}

	if _, err := coord.End(context.Background(), roomID); err != nil {
		t.Fatalf("expected end to succeed, got %v", err)
	}
	if got := coord.ActiveRooms(); len(got) != 0 {
		t.Fatalf("expected no rooms after end, got %d", len(got))
	}
}
