// Package notify доставляет события бронирований подписчикам:
// внутри процесса, по websocket и в Telegram чат операторов.
package notify

import (
	"context"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/model"
	"github.com/google/uuid"
)

type EventType string

const (
	EventBookingRequested EventType = "booking.requested"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
)

type Event struct {
	Type        EventType           `json:"type"`
	BookingID   uuid.UUID           `json:"booking_id"`
	MentorID    string              `json:"mentor_id"`
	RequesterID string              `json:"requester_id"`
	Start       time.Time           `json:"start"`
	End         time.Time           `json:"end"`
	Status      model.BookingStatus `json:"status"`
	Reason      model.CancelReason  `json:"reason,omitempty"`
	OccurredAt  time.Time           `json:"occurred_at"`
}

// Publisher отправляет событие получателям. Ошибка доставки не отменяет бронирование.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NewEvent собирает событие из текущего состояния бронирования
func NewEvent(eventType EventType, booking *model.Booking, at time.Time) Event {
	return Event{
		Type:        eventType,
		BookingID:   booking.ID,
		MentorID:    booking.MentorID,
		RequesterID: booking.RequesterID,
		Start:       booking.Interval.Start,
		End:         booking.Interval.End,
		Status:      booking.Status,
		Reason:      booking.CancelReason,
		OccurredAt:  at.UTC(),
	}
}

// Recipients пользователи, которым адресовано событие
func (e Event) Recipients() []string {
	if e.MentorID == e.RequesterID {
		return []string{e.MentorID}
	}
	return []string{e.MentorID, e.RequesterID}
}

// Nop отбрасывает все события
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
