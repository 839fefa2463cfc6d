package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"mentorly-backend/internal/notify"
	"mentorly-backend/internal/repository"
	"mentorly-backend/internal/services"
)

// Pool drains the outbound notification queue and delivers email. Delivery
// runs with its own retry policy, fully decoupled from the ledger
// transactions that enqueued the events.
type Pool struct {
	redis       *redis.Client
	email       *services.EmailService
	userRepo    *repository.UserRepo
	slotRepo    repository.SlotRepo
	workerCount int
	maxAttempts int
	stopChan    chan struct{}
}

func NewPool(redisClient *redis.Client, email *services.EmailService, userRepo *repository.UserRepo, slotRepo repository.SlotRepo, workerCount int) *Pool {
	return &Pool{
		redis:       redisClient,
		email:       email,
		userRepo:    userRepo,
		slotRepo:    slotRepo,
		workerCount: workerCount,
		maxAttempts: 3,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}
	log.Printf("Started %d notification workers", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BRPOP with 30s timeout
		result, err := p.redis.BRPop(ctx, 30*time.Second, notify.QueueKey).Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var event notify.Event
		if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
			log.Printf("Worker %d: failed to parse event: %v", id, err)
			continue
		}

		p.deliver(ctx, id, event)
	}
}

func (p *Pool) deliver(ctx context.Context, id int, event notify.Event) {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		lastErr = p.send(ctx, event)
		if lastErr == nil {
			return
		}
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	log.Printf("Worker %d: dropping %s event after %d attempts: %v", id, event.Type, p.maxAttempts, lastErr)
}

func (p *Pool) send(ctx context.Context, event notify.Event) error {
	user, err := p.userRepo.GetByID(ctx, event.UserID)
	if err != nil {
		return err
	}

	switch event.Type {
	case notify.EventBookingConfirmed:
		if event.SlotID != nil {
			slot, err := p.slotRepo.GetByID(ctx, *event.SlotID)
			if err == nil {
				return p.email.SendBookingConfirmedEmail(user.Email, user.FullName, slot.ScheduledStart, slot.ScheduledEnd)
			}
		}
		return p.email.SendBookingConfirmedEmail(user.Email, user.FullName, event.CreatedAt, event.CreatedAt)

	case notify.EventCancellationRequested:
		return p.email.SendCancellationRequestedEmail(user.Email, user.FullName)

	case notify.EventSessionCancelled:
		return p.email.SendSessionCancelledEmail(user.Email, user.FullName)

	case notify.EventSessionCompleted:
		duration, _ := intFromData(event.Data, "duration_minutes")
		amount, _ := intFromData(event.Data, "earnings_amount")
		return p.email.SendSessionCompletedEmail(user.Email, user.FullName, duration, int64(amount))

	case notify.EventWithdrawalRequested:
		amount, _ := intFromData(event.Data, "amount")
		return p.email.SendWithdrawalUpdateEmail(user.Email, user.FullName, "requested", int64(amount))

	case notify.EventWithdrawalCompleted:
		amount, _ := intFromData(event.Data, "amount")
		return p.email.SendWithdrawalUpdateEmail(user.Email, user.FullName, "completed", int64(amount))

	case notify.EventWithdrawalCancelled:
		amount, _ := intFromData(event.Data, "amount")
		return p.email.SendWithdrawalUpdateEmail(user.Email, user.FullName, "cancelled", int64(amount))

	default:
		log.Printf("notify: unknown event type %q, dropping", event.Type)
		return nil
	}
}

// intFromData reads a numeric field out of the decoded JSON payload, where
// numbers arrive as float64.
func intFromData(data map[string]interface{}, key string) (int, bool) {
	if data == nil {
		return 0, false
	}
	switch v := data[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}
