package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mentorly-backend/internal/models"
)

const slotColumns = `id, mentor_id, student_id, scheduled_start, scheduled_end, is_available,
	status, actual_start_time, actual_end_time, duration_minutes,
	earnings_credited, earnings_credited_at, created_at`

type SlotRepo interface {
	CreateOrRestore(ctx context.Context, mentorID uuid.UUID, start, end time.Time) (*models.Slot, error)
	Release(ctx context.Context, mentorID uuid.UUID, slotIDs []uuid.UUID) (int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Slot, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Slot, error)
	FindAvailableForUpdate(ctx context.Context, tx pgx.Tx, mentorID uuid.UUID, start, end time.Time) (*models.Slot, error)
	Assign(ctx context.Context, tx pgx.Tx, slotID, studentID uuid.UUID) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, slotID uuid.UUID, status models.SlotStatus) error
	SetActualStart(ctx context.Context, slotID uuid.UUID, at time.Time) (bool, error)
	Complete(ctx context.Context, tx pgx.Tx, slotID uuid.UUID, actualStart, actualEnd time.Time, durationMinutes int, credited bool) error
	ListForMentor(ctx context.Context, mentorID uuid.UUID) ([]models.Slot, error)
	ListAvailableForMentor(ctx context.Context, mentorID uuid.UUID, from time.Time) ([]models.Slot, error)
	ListForStudent(ctx context.Context, studentID uuid.UUID) ([]models.Slot, error)
}

type pgSlotRepo struct {
	pool *pgxpool.Pool
}

func NewSlotRepo(pool *pgxpool.Pool) SlotRepo {
	return &pgSlotRepo{pool: pool}
}

// CreateOrRestore inserts an available slot for the window, or flips
// is_available back on when the mentor already declared that exact window.
// Idempotent; a booked slot is left untouched.
func (r *pgSlotRepo) CreateOrRestore(ctx context.Context, mentorID uuid.UUID, start, end time.Time) (*models.Slot, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO slots (id, mentor_id, scheduled_start, scheduled_end, is_available, status)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		ON CONFLICT (mentor_id, scheduled_start, scheduled_end) DO UPDATE
		SET is_available = CASE WHEN slots.student_id IS NULL THEN TRUE ELSE slots.is_available END
		RETURNING `+slotColumns+`
	`, uuid.New(), mentorID, start, end, models.SlotTentative)
	slot, err := scanSlot(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create availability slot: %w", err)
	}
	return slot, nil
}

func (r *pgSlotRepo) Release(ctx context.Context, mentorID uuid.UUID, slotIDs []uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET is_available = FALSE
		WHERE mentor_id = $1 AND id = ANY($2) AND student_id IS NULL
	`, mentorID, slotIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to remove availability: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgSlotRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Slot, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+slotColumns+" FROM slots WHERE id = $1", id)
	return scanSlot(row)
}

func (r *pgSlotRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Slot, error) {
	row := tx.QueryRow(ctx, "SELECT "+slotColumns+" FROM slots WHERE id = $1 FOR UPDATE", id)
	return scanSlot(row)
}

// FindAvailableForUpdate locates an unbooked available slot matching the
// requested window and locks the row, so two concurrent reservations cannot
// both observe it as free. Matching compares timestamptz values, not the
// caller's string timestamps.
func (r *pgSlotRepo) FindAvailableForUpdate(ctx context.Context, tx pgx.Tx, mentorID uuid.UUID, start, end time.Time) (*models.Slot, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE mentor_id = $1
		  AND scheduled_start = $2
		  AND scheduled_end = $3
		  AND is_available = TRUE
		  AND student_id IS NULL
		FOR UPDATE
	`, mentorID, start, end)
	return scanSlot(row)
}

func (r *pgSlotRepo) Assign(ctx context.Context, tx pgx.Tx, slotID, studentID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE slots
		SET student_id = $2, status = $3, is_available = FALSE
		WHERE id = $1 AND student_id IS NULL
	`, slotID, studentID, models.SlotConfirmed)
	if err != nil {
		return fmt.Errorf("failed to assign slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgSlotRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, slotID uuid.UUID, status models.SlotStatus) error {
	tag, err := tx.Exec(ctx, "UPDATE slots SET status = $2 WHERE id = $1", slotID, status)
	if err != nil {
		return fmt.Errorf("failed to update slot status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetActualStart records the live start time only when none is set yet.
// Returns false when another trigger already started the meeting.
func (r *pgSlotRepo) SetActualStart(ctx context.Context, slotID uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET actual_start_time = $2
		WHERE id = $1 AND actual_start_time IS NULL
	`, slotID, at)
	if err != nil {
		return false, fmt.Errorf("failed to set actual start time: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgSlotRepo) Complete(ctx context.Context, tx pgx.Tx, slotID uuid.UUID, actualStart, actualEnd time.Time, durationMinutes int, credited bool) error {
	_, err := tx.Exec(ctx, `
		UPDATE slots
		SET status = $2,
			actual_start_time = $3,
			actual_end_time = $4,
			duration_minutes = $5,
			earnings_credited = $6,
			earnings_credited_at = CASE WHEN $6 AND earnings_credited_at IS NULL THEN NOW() ELSE earnings_credited_at END
		WHERE id = $1
	`, slotID, models.SlotCompleted, actualStart, actualEnd, durationMinutes, credited)
	if err != nil {
		return fmt.Errorf("failed to complete slot: %w", err)
	}
	return nil
}

func (r *pgSlotRepo) ListForMentor(ctx context.Context, mentorID uuid.UUID) ([]models.Slot, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+slotColumns+" FROM slots WHERE mentor_id = $1 ORDER BY scheduled_start", mentorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentor slots: %w", err)
	}
	return collectSlots(rows)
}

func (r *pgSlotRepo) ListAvailableForMentor(ctx context.Context, mentorID uuid.UUID, from time.Time) ([]models.Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE mentor_id = $1 AND is_available = TRUE AND student_id IS NULL AND scheduled_start >= $2
		ORDER BY scheduled_start
	`, mentorID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to list available slots: %w", err)
	}
	return collectSlots(rows)
}

func (r *pgSlotRepo) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]models.Slot, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+slotColumns+" FROM slots WHERE student_id = $1 ORDER BY scheduled_start DESC", studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list student slots: %w", err)
	}
	return collectSlots(rows)
}

func scanSlot(row pgx.Row) (*models.Slot, error) {
	slot := &models.Slot{}
	err := row.Scan(
		&slot.ID, &slot.MentorID, &slot.StudentID, &slot.ScheduledStart, &slot.ScheduledEnd,
		&slot.IsAvailable, &slot.Status, &slot.ActualStartTime, &slot.ActualEndTime,
		&slot.DurationMinutes, &slot.EarningsCredited, &slot.EarningsCreditedAt, &slot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return slot, nil
}

func collectSlots(rows pgx.Rows) ([]models.Slot, error) {
	defer rows.Close()
	slots := make([]models.Slot, 0)
	for rows.Next() {
		var slot models.Slot
		if err := rows.Scan(
			&slot.ID, &slot.MentorID, &slot.StudentID, &slot.ScheduledStart, &slot.ScheduledEnd,
			&slot.IsAvailable, &slot.Status, &slot.ActualStartTime, &slot.ActualEndTime,
			&slot.DurationMinutes, &slot.EarningsCredited, &slot.EarningsCreditedAt, &slot.CreatedAt,
		); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}
