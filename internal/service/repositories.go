package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/interval"
	"github.com/Freeeeeet/mentor_scheduler/internal/model"
	"github.com/google/uuid"
)

// ScheduleRepository хранилище расписаний: repository.ScheduleRepository или memory.ScheduleRepository.
// GetSchedule возвращает nil, nil, если расписания нет.
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *model.MentorSchedule) error
	GetSchedule(ctx context.Context, mentorID string) (*model.MentorSchedule, error)
	ReplaceWeeklySlots(ctx context.Context, mentorID string, slots []model.WeeklySlot) (*model.MentorSchedule, error)
	ReplaceOverrideSlots(ctx context.Context, mentorID string, overrides []model.OverrideSlot) (*model.MentorSchedule, error)
}

// BookingRepository хранилище бронирований. Create обязан сам отклонять пересечения
// активных бронирований ментора (ErrSlotUnavailable). GetByID возвращает nil, nil, если бронирования нет.
type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	ListActiveByMentor(ctx context.Context, mentorID string, window interval.Interval) ([]*model.Booking, error)
	ListByMentor(ctx context.Context, mentorID string) ([]*model.Booking, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.Booking, error)
	Transition(ctx context.Context, id uuid.UUID, from, to model.BookingStatus, reason model.CancelReason) (*model.Booking, error)
}
