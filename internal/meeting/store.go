package meeting

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Room is the transient state of one live session. It mirrors the slot's
// actual times locally; durable truth stays in the slots table.
type Room struct {
	RoomID       string
	SlotID       uuid.UUID
	MentorID     uuid.UUID
	StudentID    uuid.UUID
	Participants map[string]string // participant key -> display name
	StartTime    *time.Time
	EndTime      *time.Time
}

// SessionStore abstracts room-state storage so a clustered deployment can
// swap the in-process map for a shared backend without touching the
// coordinator. A process restart loses in-flight membership either way;
// durable slot state is unaffected.
type SessionStore interface {
	Get(roomID string) (*Room, bool)
	Set(roomID string, room *Room)
	Delete(roomID string)
	List() []*Room
}

type memoryStore struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewMemoryStore() SessionStore {
	return &memoryStore{rooms: make(map[string]*Room)}
}

func (s *memoryStore) Get(roomID string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

func (s *memoryStore) Set(roomID string, room *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[roomID] = room
}

func (s *memoryStore) Delete(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

func (s *memoryStore) List() []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
