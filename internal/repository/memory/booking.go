package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/interval"
	"github.com/Freeeeeet/mentor_scheduler/internal/model"
	"github.com/google/uuid"
)

// BookingRepository хранит бронирования в памяти процесса.
// Create повторяет проверку пересечений так же, как exclusion constraint в PostgreSQL.
type BookingRepository struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]*model.Booking
	byMentor map[string][]uuid.UUID
	now      func() time.Time
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		bookings: make(map[uuid.UUID]*model.Booking),
		byMentor: make(map[string][]uuid.UUID),
		now:      time.Now,
	}
}

func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bookings[booking.ID]; ok {
		return fmt.Errorf("create booking: duplicate id %s", booking.ID)
	}

	for _, id := range r.byMentor[booking.MentorID] {
		existing := r.bookings[id]
		if existing.Status.IsActive() && existing.Interval.Overlaps(booking.Interval) {
			return fmt.Errorf("create booking: %w", model.ErrSlotUnavailable)
		}
	}

	now := r.now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	cp := *booking
	r.bookings[booking.ID] = &cp
	r.byMentor[booking.MentorID] = append(r.byMentor[booking.MentorID], booking.ID)
	return nil
}

func (r *BookingRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *BookingRepository) ListActiveByMentor(_ context.Context, mentorID string, window interval.Interval) ([]*model.Booking, error) {
	return r.filter(func(b *model.Booking) bool {
		return b.MentorID == mentorID && b.Status.IsActive() && b.Interval.Overlaps(window)
	}), nil
}

func (r *BookingRepository) ListByMentor(_ context.Context, mentorID string) ([]*model.Booking, error) {
	return r.filter(func(b *model.Booking) bool {
		return b.MentorID == mentorID
	}), nil
}

func (r *BookingRepository) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]*model.Booking, error) {
	expired := r.filter(func(b *model.Booking) bool {
		return b.IsExpired(now)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (r *BookingRepository) Transition(_ context.Context, id uuid.UUID, from, to model.BookingStatus, reason model.CancelReason) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, fmt.Errorf("update booking status: %w", model.ErrBookingNotFound)
	}
	if b.Status != from {
		return nil, fmt.Errorf("update booking status %s -> %s: %w", b.Status, to, model.ErrInvalidTransition)
	}

	b.Status = to
	b.CancelReason = reason
	if to != model.BookingStatusPendingPayment {
		b.ExpiresAt = nil
	}
	b.UpdatedAt = r.now().UTC()

	cp := *b
	return &cp, nil
}

func (r *BookingRepository) filter(keep func(b *model.Booking) bool) []*model.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Booking
	for _, b := range r.bookings {
		if keep(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Interval.Start.Before(out[j].Interval.Start) })
	return out
}
