package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// QueueKey is the redis list the outbound worker pool consumes.
const QueueKey = "queue:notifications"

// Event types understood by the worker pool.
const (
	EventBookingConfirmed      = "booking_confirmed"
	EventCancellationRequested = "cancellation_requested"
	EventSessionCancelled      = "session_cancelled"
	EventSessionCompleted      = "session_completed"
	EventWithdrawalRequested   = "withdrawal_requested"
	EventWithdrawalCompleted   = "withdrawal_completed"
	EventWithdrawalCancelled   = "withdrawal_cancelled"
)

type Event struct {
	Type      string                 `json:"type"`
	UserID    uuid.UUID              `json:"user_id"`
	SlotID    *uuid.UUID             `json:"slot_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Queue pushes outbound notification events onto a redis list. Sends are
// fire-and-forget: a failed push is logged and dropped, never surfaced to
// the ledger operation that triggered it.
type Queue struct {
	redis *redis.Client
}

func NewQueue(redisClient *redis.Client) *Queue {
	return &Queue{redis: redisClient}
}

func (q *Queue) Publish(ctx context.Context, event Event) {
	if q == nil || q.redis == nil {
		return
	}
	event.CreatedAt = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("notify: failed to marshal %s event: %v", event.Type, err)
		return
	}
	if err := q.redis.LPush(ctx, QueueKey, payload).Err(); err != nil {
		log.Printf("notify: failed to enqueue %s event: %v", event.Type, err)
	}
}
