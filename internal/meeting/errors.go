package meeting

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrNotInRoom      = errors.New("participant is not in the room")
	ErrInvalidRoomID  = errors.New("room id is required")
	ErrInvalidSlotID  = errors.New("slot id is required")
	ErrInvalidUserRef = errors.New("mentor and student ids are required")
)
