package handlers

import (
	"net/http"

	"mentorly-backend/internal/meeting"
)

// RoomLister exposes the live rooms held by the serving process.
type RoomLister interface {
	ActiveRooms() []meeting.RoomSummary
}

type MeetingHandler struct {
	rooms RoomLister
}

func NewMeetingHandler(rooms RoomLister) *MeetingHandler {
	return &MeetingHandler{rooms: rooms}
}

// ListActive returns the rooms currently live on this instance. Room state
// is process-local, so the listing reflects only this process.
func (h *MeetingHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rooms": h.rooms.ActiveRooms(),
	})
}
