package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mentorly-backend/internal/models"
	"mentorly-backend/internal/notify"
	"mentorly-backend/internal/repository"
)

// fakeTx satisfies pgx.Tx by embedding; only Commit and Rollback are ever
// called because the repositories under the services are faked too.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	lastTx *fakeTx
}

func (db *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	db.lastTx = &fakeTx{}
	return db.lastTx, nil
}

type fakeEvents struct {
	published []notify.Event
}

func (e *fakeEvents) Publish(ctx context.Context, event notify.Event) {
	e.published = append(e.published, event)
}

func (e *fakeEvents) ofType(eventType string) []notify.Event {
	var out []notify.Event
	for _, ev := range e.published {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// fakeSlotRepo keeps slots in a map keyed by id.
type fakeSlotRepo struct {
	slots map[uuid.UUID]*models.Slot
}

func newFakeSlotRepo() *fakeSlotRepo {
	return &fakeSlotRepo{slots: make(map[uuid.UUID]*models.Slot)}
}

func (r *fakeSlotRepo) add(slot *models.Slot) *models.Slot {
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	r.slots[slot.ID] = slot
	return slot
}

func (r *fakeSlotRepo) CreateOrRestore(ctx context.Context, mentorID uuid.UUID, start, end time.Time) (*models.Slot, error) {
	for _, s := range r.slots {
		if s.MentorID == mentorID && s.ScheduledStart.Equal(start) && s.ScheduledEnd.Equal(end) {
			if s.StudentID == nil {
				s.IsAvailable = true
			}
			return s, nil
		}
	}
	return r.add(&models.Slot{
		MentorID:       mentorID,
		ScheduledStart: start,
		ScheduledEnd:   end,
		IsAvailable:    true,
		Status:         models.SlotTentative,
	}), nil
}

func (r *fakeSlotRepo) Release(ctx context.Context, mentorID uuid.UUID, slotIDs []uuid.UUID) (int64, error) {
	var released int64
	for _, id := range slotIDs {
		s, ok := r.slots[id]
		if ok && s.MentorID == mentorID && s.StudentID == nil && s.IsAvailable {
			s.IsAvailable = false
			released++
		}
	}
	return released, nil
}

func (r *fakeSlotRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Slot, error) {
	s, ok := r.slots[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSlotRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Slot, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeSlotRepo) FindAvailableForUpdate(ctx context.Context, tx pgx.Tx, mentorID uuid.UUID, start, end time.Time) (*models.Slot, error) {
	for _, s := range r.slots {
		if s.MentorID == mentorID && s.ScheduledStart.Equal(start) && s.ScheduledEnd.Equal(end) &&
			s.IsAvailable && s.StudentID == nil {
			copied := *s
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeSlotRepo) Assign(ctx context.Context, tx pgx.Tx, slotID, studentID uuid.UUID) error {
	s, ok := r.slots[slotID]
	if !ok {
		return pgx.ErrNoRows
	}
	s.StudentID = &studentID
	s.IsAvailable = false
	s.Status = models.SlotConfirmed
	return nil
}

func (r *fakeSlotRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, slotID uuid.UUID, status models.SlotStatus) error {
	s, ok := r.slots[slotID]
	if !ok {
		return pgx.ErrNoRows
	}
	s.Status = status
	return nil
}

func (r *fakeSlotRepo) SetActualStart(ctx context.Context, slotID uuid.UUID, at time.Time) (bool, error) {
	s, ok := r.slots[slotID]
	if !ok || s.ActualStartTime != nil {
		return false, nil
	}
	s.ActualStartTime = &at
	return true, nil
}

func (r *fakeSlotRepo) Complete(ctx context.Context, tx pgx.Tx, slotID uuid.UUID, actualStart, actualEnd time.Time, durationMinutes int, credited bool) error {
	s, ok := r.slots[slotID]
	if !ok {
		return pgx.ErrNoRows
	}
	s.Status = models.SlotCompleted
	s.ActualStartTime = &actualStart
	s.ActualEndTime = &actualEnd
	s.DurationMinutes = &durationMinutes
	s.EarningsCredited = credited
	if credited && s.EarningsCreditedAt == nil {
		now := time.Now().UTC()
		s.EarningsCreditedAt = &now
	}
	return nil
}

func (r *fakeSlotRepo) ListForMentor(ctx context.Context, mentorID uuid.UUID) ([]models.Slot, error) {
	return r.list(func(s *models.Slot) bool { return s.MentorID == mentorID }), nil
}

func (r *fakeSlotRepo) ListAvailableForMentor(ctx context.Context, mentorID uuid.UUID, from time.Time) ([]models.Slot, error) {
	return r.list(func(s *models.Slot) bool {
		return s.MentorID == mentorID && s.IsAvailable && s.ScheduledStart.After(from)
	}), nil
}

func (r *fakeSlotRepo) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]models.Slot, error) {
	return r.list(func(s *models.Slot) bool {
		return s.StudentID != nil && *s.StudentID == studentID
	}), nil
}

func (r *fakeSlotRepo) list(match func(*models.Slot) bool) []models.Slot {
	out := make([]models.Slot, 0)
	for _, s := range r.slots {
		if match(s) {
			out = append(out, *s)
		}
	}
	return out
}

// fakeTokenRepo keeps balances and usage rows in memory.
type fakeTokenRepo struct {
	balances map[uuid.UUID]int
	usage    []models.TokenUsageRecord
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{balances: make(map[uuid.UUID]int)}
}

func (r *fakeTokenRepo) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.balances[userID], nil
}

func (r *fakeTokenRepo) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (int, int, error) {
	before := r.balances[userID]
	if before < amount {
		return 0, 0, repository.ErrInsufficientTokens
	}
	r.balances[userID] = before - amount
	return before, before - amount, nil
}

func (r *fakeTokenRepo) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (int, int, error) {
	before := r.balances[userID]
	r.balances[userID] = before + amount
	return before, before + amount, nil
}

func (r *fakeTokenRepo) InsertUsage(ctx context.Context, tx pgx.Tx, rec *models.TokenUsageRecord) error {
	rec.ID = uuid.New()
	rec.CreatedAt = time.Now().UTC()
	r.usage = append(r.usage, *rec)
	return nil
}

func (r *fakeTokenRepo) GetBookingUsage(ctx context.Context, slotID uuid.UUID) (*models.TokenUsageRecord, error) {
	for i := range r.usage {
		rec := r.usage[i]
		if rec.SlotID != nil && *rec.SlotID == slotID && rec.UsageType == models.UsageMeetingBooking {
			return &rec, nil
		}
	}
	return nil, nil
}

func (r *fakeTokenRepo) HasRefundForSlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) (bool, error) {
	for _, rec := range r.usage {
		if rec.SlotID != nil && *rec.SlotID == slotID && rec.UsageType == models.UsageRefund {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTokenRepo) ListUsage(ctx context.Context, userID uuid.UUID, limit int) ([]models.TokenUsageRecord, error) {
	out := make([]models.TokenUsageRecord, 0)
	for _, rec := range r.usage {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeTokenRepo) usageOfType(usageType models.UsageType) []models.TokenUsageRecord {
	var out []models.TokenUsageRecord
	for _, rec := range r.usage {
		if rec.UsageType == usageType {
			out = append(out, rec)
		}
	}
	return out
}

// fakeEarningsRepo mirrors the aggregate-plus-ledger shape of the real repo.
type fakeEarningsRepo struct {
	aggregates map[uuid.UUID]*models.MentorEarnings
	txns       map[uuid.UUID]*models.MentorTransaction
}

func newFakeEarningsRepo() *fakeEarningsRepo {
	return &fakeEarningsRepo{
		aggregates: make(map[uuid.UUID]*models.MentorEarnings),
		txns:       make(map[uuid.UUID]*models.MentorTransaction),
	}
}

func (r *fakeEarningsRepo) aggregate(mentorID uuid.UUID) *models.MentorEarnings {
	agg, ok := r.aggregates[mentorID]
	if !ok {
		agg = &models.MentorEarnings{MentorID: mentorID}
		r.aggregates[mentorID] = agg
	}
	return agg
}

func (r *fakeEarningsRepo) GetForMentor(ctx context.Context, mentorID uuid.UUID) (*models.MentorEarnings, error) {
	copied := *r.aggregate(mentorID)
	return &copied, nil
}

func (r *fakeEarningsRepo) HasEarningForSlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) (bool, error) {
	for _, txn := range r.txns {
		if txn.Type == models.TransactionEarning && txn.SlotID != nil && *txn.SlotID == slotID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeEarningsRepo) ApplyEarning(ctx context.Context, tx pgx.Tx, mentorID, slotID uuid.UUID, amount int64) (*models.MentorTransaction, error) {
	agg := r.aggregate(mentorID)
	agg.TotalEarnings += amount
	agg.AvailableBalance += amount

	txn := &models.MentorTransaction{
		ID:        uuid.New(),
		MentorID:  mentorID,
		Type:      models.TransactionEarning,
		Amount:    amount,
		SlotID:    &slotID,
		CreatedAt: time.Now().UTC(),
	}
	r.txns[txn.ID] = txn
	return txn, nil
}

func (r *fakeEarningsRepo) ReserveWithdrawal(ctx context.Context, tx pgx.Tx, mentorID uuid.UUID, amount int64, method, destination string) (*models.MentorTransaction, error) {
	agg := r.aggregate(mentorID)
	if agg.AvailableBalance < amount {
		return nil, repository.ErrInsufficientBalance
	}
	agg.AvailableBalance -= amount

	status := models.WithdrawalRequested
	txn := &models.MentorTransaction{
		ID:            uuid.New(),
		MentorID:      mentorID,
		Type:          models.TransactionWithdrawal,
		Amount:        -amount,
		Status:        &status,
		PaymentMethod: &method,
		Destination:   &destination,
		CreatedAt:     time.Now().UTC(),
	}
	r.txns[txn.ID] = txn
	return txn, nil
}

func (r *fakeEarningsRepo) CompleteWithdrawal(ctx context.Context, tx pgx.Tx, txnID uuid.UUID, externalRef string) (*models.MentorTransaction, error) {
	txn, ok := r.txns[txnID]
	if !ok || txn.Type != models.TransactionWithdrawal || txn.Status == nil {
		return nil, pgx.ErrNoRows
	}
	if *txn.Status != models.WithdrawalRequested && *txn.Status != models.WithdrawalInProcess {
		return nil, pgx.ErrNoRows
	}
	status := models.WithdrawalCompleted
	now := time.Now().UTC()
	txn.Status = &status
	txn.ExternalRef = &externalRef
	txn.CompletedAt = &now

	r.aggregate(txn.MentorID).WithdrawnAmount += -txn.Amount
	copied := *txn
	return &copied, nil
}

func (r *fakeEarningsRepo) CancelWithdrawal(ctx context.Context, tx pgx.Tx, txnID uuid.UUID) (*models.MentorTransaction, error) {
	txn, ok := r.txns[txnID]
	if !ok || txn.Type != models.TransactionWithdrawal || txn.Status == nil || *txn.Status != models.WithdrawalRequested {
		return nil, pgx.ErrNoRows
	}
	status := models.WithdrawalCancelled
	txn.Status = &status

	r.aggregate(txn.MentorID).AvailableBalance += -txn.Amount
	copied := *txn
	return &copied, nil
}

func (r *fakeEarningsRepo) ListWithdrawals(ctx context.Context, mentorID uuid.UUID, status *models.WithdrawalStatus) ([]models.MentorTransaction, error) {
	out := make([]models.MentorTransaction, 0)
	for _, txn := range r.txns {
		if txn.MentorID != mentorID || txn.Type != models.TransactionWithdrawal {
			continue
		}
		if status != nil && (txn.Status == nil || *txn.Status != *status) {
			continue
		}
		out = append(out, *txn)
	}
	return out, nil
}

func (r *fakeEarningsRepo) ListTransactions(ctx context.Context, mentorID uuid.UUID, limit int) ([]models.MentorTransaction, error) {
	out := make([]models.MentorTransaction, 0)
	for _, txn := range r.txns {
		if txn.MentorID == mentorID {
			out = append(out, *txn)
		}
	}
	return out, nil
}

func (r *fakeEarningsRepo) earningCount() int {
	n := 0
	for _, txn := range r.txns {
		if txn.Type == models.TransactionEarning {
			n++
		}
	}
	return n
}
