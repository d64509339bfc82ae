package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/interval"
	"github.com/Freeeeeet/mentor_scheduler/internal/model"
	"github.com/Freeeeeet/mentor_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const bookingColumns = `id, mentor_id, requester_id, start_time, end_time, status, cancel_reason, expires_at, created_at, updated_at`

type BookingRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewBookingRepository(pool *pgxpool.Pool, logger *zap.Logger) *BookingRepository {
	return &BookingRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

// Create создаёт бронирование, если интервал не пересекается с активными бронированиями ментора.
// Проверка и вставка идут в одной транзакции под advisory lock ментора,
// exclusion constraint в схеме — последняя линия защиты.
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return r.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, booking.MentorID); err != nil {
			return fmt.Errorf("lock mentor bookings: %w", err)
		}

		var busy bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM bookings
				WHERE mentor_id = $1
				  AND status IN ('PENDING_PAYMENT', 'CONFIRMED')
				  AND start_time < $3 AND end_time > $2
			)
		`, booking.MentorID, booking.Interval.Start, booking.Interval.End).Scan(&busy)
		if err != nil {
			return fmt.Errorf("check booking overlap: %w", err)
		}
		if busy {
			return fmt.Errorf("create booking: %w", model.ErrSlotUnavailable)
		}

		query := `
			INSERT INTO bookings (id, mentor_id, requester_id, start_time, end_time, status, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at
		`

		err = tx.QueryRow(ctx, query,
			booking.ID,
			booking.MentorID,
			booking.RequesterID,
			booking.Interval.Start,
			booking.Interval.End,
			booking.Status,
			booking.ExpiresAt,
		).Scan(&booking.CreatedAt, &booking.UpdatedAt)
		if err != nil {
			if base.IsExclusionViolation(err) {
				return fmt.Errorf("create booking: %w", model.ErrSlotUnavailable)
			}
			return fmt.Errorf("create booking: %w", err)
		}

		return nil
	})
}

// GetByID получает бронирование по ID. Если его нет, возвращает nil, nil.
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.QueryRow(ctx, query, id))
	if base.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// ListActiveByMentor получает PENDING_PAYMENT и CONFIRMED бронирования ментора, пересекающиеся с window
func (r *BookingRepository) ListActiveByMentor(ctx context.Context, mentorID string, window interval.Interval) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE mentor_id = $1
		  AND status IN ('PENDING_PAYMENT', 'CONFIRMED')
		  AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`

	return r.list(ctx, "list active bookings", query, mentorID, window.Start, window.End)
}

// ListByMentor получает все бронирования ментора в порядке начала
func (r *BookingRepository) ListByMentor(ctx context.Context, mentorID string) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE mentor_id = $1 ORDER BY start_time`

	return r.list(ctx, "list bookings by mentor", query, mentorID)
}

// ListExpiredPending получает неоплаченные бронирования, срок которых истёк к now
func (r *BookingRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'PENDING_PAYMENT' AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`

	return r.list(ctx, "list expired bookings", query, now, limit)
}

// Transition переводит бронирование из статуса from в статус to.
// Если статус уже изменился, возвращает ErrInvalidTransition.
func (r *BookingRepository) Transition(ctx context.Context, id uuid.UUID, from, to model.BookingStatus, reason model.CancelReason) (*model.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $3,
		    cancel_reason = NULLIF($4, ''),
		    expires_at = CASE WHEN $3 = 'PENDING_PAYMENT' THEN expires_at ELSE NULL END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + bookingColumns

	booking, err := scanBooking(r.QueryRow(ctx, query, id, from, to, string(reason)))
	if base.IsNotFound(err) {
		existing, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing == nil {
			return nil, fmt.Errorf("update booking status: %w", model.ErrBookingNotFound)
		}
		return nil, fmt.Errorf("update booking status %s -> %s: %w", existing.Status, to, model.ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	r.logger.Debug("Booking status updated",
		zap.String("booking_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	return booking, nil
}

func (r *BookingRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		booking    model.Booking
		start, end time.Time
		reason     *string
	)
	err := row.Scan(
		&booking.ID,
		&booking.MentorID,
		&booking.RequesterID,
		&start,
		&end,
		&booking.Status,
		&reason,
		&booking.ExpiresAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	booking.Interval = interval.New(start, end)
	if reason != nil {
		booking.CancelReason = model.CancelReason(*reason)
	}
	return &booking, nil
}
