package model

import (
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/interval"
	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPendingPayment BookingStatus = "PENDING_PAYMENT" // Ожидает оплаты
	BookingStatusConfirmed      BookingStatus = "CONFIRMED"       // Оплачено и подтверждено
	BookingStatusCancelled      BookingStatus = "CANCELLED"       // Отменено, интервал освобождён
)

// IsActive сообщает, занимает ли бронирование время ментора
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPendingPayment || s == BookingStatusConfirmed
}

// CanTransitionTo проверяет допустимость перехода в машине состояний бронирования
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingStatusPendingPayment:
		return next == BookingStatusConfirmed || next == BookingStatusCancelled
	case BookingStatusConfirmed:
		return next == BookingStatusCancelled
	default:
		return false
	}
}

type CancelReason string

const (
	CancelReasonRequested     CancelReason = "requested"
	CancelReasonPaymentFailed CancelReason = "payment_failed"
	CancelReasonExpired       CancelReason = "expired"
)

type Booking struct {
	ID           uuid.UUID         `json:"id"`
	MentorID     string            `json:"mentor_id"`
	RequesterID  string            `json:"requester_id"`
	Interval     interval.Interval `json:"interval"`
	Status       BookingStatus     `json:"status"`
	CancelReason CancelReason      `json:"cancel_reason,omitempty"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"` // Только для PENDING_PAYMENT
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// IsExpired сообщает, что неоплаченное бронирование просрочено на момент now
func (b *Booking) IsExpired(now time.Time) bool {
	return b.Status == BookingStatusPendingPayment && b.ExpiresAt != nil && !now.Before(*b.ExpiresAt)
}
