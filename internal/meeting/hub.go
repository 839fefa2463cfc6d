package meeting

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"mentorly-backend/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type inboundMessage struct {
	Type      string    `json:"type"`
	RoomID    string    `json:"room_id"`
	SlotID    uuid.UUID `json:"slot_id,omitempty"`
	MentorID  uuid.UUID `json:"mentor_id,omitempty"`
	StudentID uuid.UUID `json:"student_id,omitempty"`
	UserName  string    `json:"user_name,omitempty"`
}

type connState struct {
	auth     middleware.AuthContext
	roomID   string
	userName string
	joined   bool
}

// Hub carries the live-session wire protocol over websocket connections and
// feeds the coordinator with discrete events. A transport-level disconnect
// is treated as a leave.
type Hub struct {
	mu    sync.RWMutex
	coord *Coordinator
	jwt   *middleware.JWTAuth
	rooms map[string]map[*websocket.Conn]struct{}
	conns map[*websocket.Conn]*connState
}

func NewHub(coord *Coordinator, jwt *middleware.JWTAuth) *Hub {
	return &Hub{
		coord: coord,
		jwt:   jwt,
		rooms: make(map[string]map[*websocket.Conn]struct{}),
		conns: make(map[*websocket.Conn]*connState),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via token query param
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	authCtx, err := h.jwt.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = &connState{auth: authCtx}
	h.mu.Unlock()

	go h.readLoop(conn)
}

func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.disconnect(conn)
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.send(conn, map[string]interface{}{
				"type":  "error",
				"error": "invalid message payload",
			})
			continue
		}
		h.handleMessage(conn, msg)
	}
}

func (h *Hub) handleMessage(conn *websocket.Conn, msg inboundMessage) {
	ctx := context.Background()

	switch msg.Type {
	case "initialize-meeting":
		_, err := h.coord.Initialize(ctx, msg.RoomID, msg.SlotID, msg.MentorID, msg.StudentID)
		if err != nil {
			h.send(conn, map[string]interface{}{"type": "error", "error": err.Error()})
			return
		}
		h.addToRoom(conn, msg.RoomID)
		h.send(conn, map[string]interface{}{
			"type":    "meeting-initialized",
			"room_id": msg.RoomID,
			"slot_id": msg.SlotID,
		})

	case "join-room":
		state := h.state(conn)
		if state == nil {
			return
		}
		res, err := h.coord.Join(ctx, msg.RoomID, state.auth.UserID.String(), msg.UserName)
		if err != nil {
			h.send(conn, map[string]interface{}{"type": "error", "error": err.Error()})
			return
		}
		h.mu.Lock()
		state.roomID = msg.RoomID
		state.userName = msg.UserName
		state.joined = true
		h.mu.Unlock()
		h.addToRoom(conn, msg.RoomID)

		if res.Started {
			h.broadcast(msg.RoomID, map[string]interface{}{
				"type":       "meeting-started",
				"slot_id":    res.SlotID,
				"start_time": res.StartTime,
			})
		}

	case "leave-room":
		h.leave(conn)

	case "end-meeting":
		outcome, err := h.coord.End(ctx, msg.RoomID)
		if err != nil {
			h.send(conn, map[string]interface{}{
				"type":  "meeting-end-error",
				"error": endErrorMessage(err),
			})
			return
		}
		h.broadcastEnded(msg.RoomID, outcome)
		h.dropRoom(msg.RoomID)

	default:
		h.send(conn, map[string]interface{}{"type": "error", "error": "unknown message type"})
	}
}

// leave handles both the explicit leave-room message and a transport-level
// disconnect. Completion of an emptied room happens here, with no direct
// acknowledgment to the leaving party.
func (h *Hub) leave(conn *websocket.Conn) {
	h.mu.Lock()
	state := h.conns[conn]
	if state == nil || !state.joined {
		h.mu.Unlock()
		return
	}
	roomID := state.roomID
	state.joined = false
	state.roomID = ""
	h.mu.Unlock()

	h.removeFromRoom(conn, roomID)

	outcome, err := h.coord.Leave(context.Background(), roomID, state.auth.UserID.String())
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) && !errors.Is(err, ErrNotInRoom) {
			log.Printf("meeting: leave failed for room %s: %v", roomID, err)
		}
		return
	}
	if outcome != nil {
		h.broadcastEnded(roomID, outcome)
		h.dropRoom(roomID)
	}
}

func (h *Hub) disconnect(conn *websocket.Conn) {
	h.leave(conn)

	h.mu.Lock()
	delete(h.conns, conn)
	for _, members := range h.rooms {
		delete(members, conn)
	}
	h.mu.Unlock()

	conn.Close()
}

func (h *Hub) broadcastEnded(roomID string, outcome *EndOutcome) {
	message := "Session completed"
	if outcome.Result.AlreadyCompleted {
		message = "Session was already completed"
	} else if !outcome.Result.EarningsCredited {
		message = "Session completed without earnings: " + outcome.Result.Reason
	}
	h.broadcast(roomID, map[string]interface{}{
		"type":              "meeting-ended",
		"slot_id":           outcome.SlotID,
		"duration":          outcome.Result.DurationMinutes,
		"earnings_credited": outcome.Result.EarningsCredited,
		"earnings_amount":   outcome.Result.EarningsAmount,
		"message":           message,
	})
}

func (h *Hub) addToRoom(conn *websocket.Conn, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*websocket.Conn]struct{})
	}
	h.rooms[roomID][conn] = struct{}{}
}

func (h *Hub) removeFromRoom(conn *websocket.Conn, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) dropRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, roomID)
}

func (h *Hub) state(conn *websocket.Conn) *connState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[conn]
}

func (h *Hub) send(conn *websocket.Conn, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Hub) broadcast(roomID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.rooms[roomID] {
		conn.WriteMessage(websocket.TextMessage, data)
	}
}

func endErrorMessage(err error) string {
	if errors.Is(err, ErrRoomNotFound) {
		return "room not found"
	}
	return err.Error()
}
