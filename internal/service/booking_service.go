package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/availability"
	"github.com/Freeeeeet/mentor_scheduler/internal/interval"
	"github.com/Freeeeeet/mentor_scheduler/internal/lock"
	"github.com/Freeeeeet/mentor_scheduler/internal/model"
	"github.com/Freeeeeet/mentor_scheduler/internal/notify"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSweepBatch = 100

// LocalTime время бронирования в локальном поясе. Пустой Timezone — пояс ментора.
type LocalTime struct {
	Date     model.Date
	Start    model.Clock
	End      model.Clock
	Timezone string
}

// BookingRequest запрос на бронирование: либо абсолютный интервал, либо локальное время
type BookingRequest struct {
	MentorID    string
	RequesterID string
	Interval    interval.Interval
	Local       *LocalTime
}

type PaymentOutcome string

const (
	PaymentSucceeded PaymentOutcome = "succeeded"
	PaymentFailed    PaymentOutcome = "failed"
)

// PaymentEvent событие от платёжного провайдера
type PaymentEvent struct {
	BookingID uuid.UUID
	Outcome   PaymentOutcome
}

type BookingConfig struct {
	PendingExpiry time.Duration
	SweepBatch    int
}

// BookingService резервирует интервалы и ведёт бронирования по машине состояний.
// Проверка доступности и вставка выполняются под блокировкой ментора;
// уведомления отправляются уже после её снятия.
type BookingService struct {
	bookings  BookingRepository
	store     *availability.Store
	locker    lock.Locker
	publisher notify.Publisher
	cfg       BookingConfig
	now       func() time.Time
	logger    *zap.Logger
}

func NewBookingService(
	bookings BookingRepository,
	store *availability.Store,
	locker lock.Locker,
	publisher notify.Publisher,
	cfg BookingConfig,
	logger *zap.Logger,
) *BookingService {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = defaultSweepBatch
	}
	return &BookingService{
		bookings:  bookings,
		store:     store,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock подменяет источник времени (для тестов)
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// RequestBooking резервирует интервал за requester и возвращает бронирование в PENDING_PAYMENT
func (s *BookingService) RequestBooking(ctx context.Context, req BookingRequest) (*model.Booking, error) {
	req.MentorID = strings.TrimSpace(req.MentorID)
	req.RequesterID = strings.TrimSpace(req.RequesterID)
	if req.MentorID == "" || req.RequesterID == "" {
		return nil, fmt.Errorf("%w: mentor and requester are required", model.ErrInvalidRequest)
	}
	if req.MentorID == req.RequesterID {
		return nil, fmt.Errorf("%w: mentor cannot book own time", model.ErrInvalidRequest)
	}

	schedule, err := s.store.Schedule(ctx, req.MentorID)
	if err != nil {
		return nil, err
	}

	iv, err := requestedInterval(req, schedule)
	if err != nil {
		return nil, err
	}

	if err := checkDuration(iv, schedule); err != nil {
		return nil, err
	}

	booking, err := s.reserve(ctx, req.MentorID, req.RequesterID, iv)
	if err != nil {
		if errors.Is(err, model.ErrSlotUnavailable) {
			s.logger.Info("Booking rejected",
				zap.String("mentor_id", req.MentorID),
				zap.String("requester_id", req.RequesterID),
				zap.String("interval", iv.String()),
			)
		}
		return nil, err
	}

	s.logger.Info("Booking requested",
		zap.String("booking_id", booking.ID.String()),
		zap.String("mentor_id", booking.MentorID),
		zap.String("requester_id", booking.RequesterID),
		zap.String("interval", iv.String()),
	)

	s.publish(ctx, notify.EventBookingRequested, booking)
	return booking, nil
}

// reserve атомарно проверяет доступность и создаёт бронирование.
// Расписание перечитывается под блокировкой ментора: правка, закоммиченная
// до захвата блокировки, должна быть учтена. Отмена ctx до вставки не оставляет следов.
func (s *BookingService) reserve(ctx context.Context, mentorID, requesterID string, iv interval.Interval) (*model.Booking, error) {
	unlock, err := s.locker.Lock(ctx, lock.MentorKey(mentorID))
	if err != nil {
		return nil, fmt.Errorf("lock mentor: %w", err)
	}
	defer unlock()

	schedule, err := s.store.Schedule(ctx, mentorID)
	if err != nil {
		return nil, err
	}
	if err := checkDuration(iv, schedule); err != nil {
		return nil, err
	}

	ok, err := s.store.IsAvailableFor(ctx, schedule, iv)
	if err != nil {
		return nil, fmt.Errorf("check availability: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrSlotUnavailable, iv)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.cfg.PendingExpiry)
	booking := &model.Booking{
		ID:          uuid.New(),
		MentorID:    schedule.MentorID,
		RequesterID: requesterID,
		Interval:    iv,
		Status:      model.BookingStatusPendingPayment,
		ExpiresAt:   &expiresAt,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func checkDuration(iv interval.Interval, schedule *model.MentorSchedule) error {
	if iv.Duration() <= 0 {
		return fmt.Errorf("%w: %s is empty", model.ErrInvalidDuration, iv)
	}
	unit := schedule.MinBookableUnit()
	if unit > 0 && iv.Duration()%unit != 0 {
		return fmt.Errorf("%w: %s is not a multiple of %s", model.ErrInvalidDuration, iv.Duration(), unit)
	}
	return nil
}

func requestedInterval(req BookingRequest, schedule *model.MentorSchedule) (interval.Interval, error) {
	if req.Local == nil {
		return interval.New(req.Interval.Start, req.Interval.End), nil
	}

	tz := req.Local.Timezone
	if tz == "" {
		tz = schedule.Timezone
	}
	loc, err := availability.LoadLocation(tz)
	if err != nil {
		return interval.Interval{}, err
	}

	start, err := availability.LocalToUTC(req.Local.Date, req.Local.Start, loc)
	if err != nil {
		return interval.Interval{}, err
	}
	end, err := availability.LocalToUTC(req.Local.Date, req.Local.End, loc)
	if err != nil {
		return interval.Interval{}, err
	}
	return interval.New(start, end), nil
}

// GetBooking возвращает бронирование или ErrBookingNotFound
func (s *BookingService) GetBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrBookingNotFound, id)
	}
	return booking, nil
}

// ListMentorBookings все бронирования ментора, включая отменённые
func (s *BookingService) ListMentorBookings(ctx context.Context, mentorID string) ([]*model.Booking, error) {
	bookings, err := s.bookings.ListByMentor(ctx, mentorID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// Confirm переводит PENDING_PAYMENT в CONFIRMED. Просроченное неоплаченное
// бронирование при этом отменяется, а вызывающий получает ErrInvalidTransition.
func (s *BookingService) Confirm(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, expired, err := s.transition(ctx, id, func(current *model.Booking, now time.Time) (model.BookingStatus, model.CancelReason, error) {
		if current.IsExpired(now) {
			return model.BookingStatusCancelled, model.CancelReasonExpired, nil
		}
		return model.BookingStatusConfirmed, "", nil
	})
	if err != nil {
		return nil, err
	}

	if expired {
		s.publish(ctx, notify.EventBookingCancelled, booking)
		return nil, fmt.Errorf("%w: booking %s expired before payment", model.ErrInvalidTransition, id)
	}

	s.publish(ctx, notify.EventBookingConfirmed, booking)
	return booking, nil
}

// Cancel отменяет любое неотменённое бронирование и освобождает его интервал
func (s *BookingService) Cancel(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return s.cancel(ctx, id, model.CancelReasonRequested)
}

func (s *BookingService) cancel(ctx context.Context, id uuid.UUID, reason model.CancelReason) (*model.Booking, error) {
	booking, _, err := s.transition(ctx, id, func(current *model.Booking, _ time.Time) (model.BookingStatus, model.CancelReason, error) {
		if reason == model.CancelReasonPaymentFailed && current.Status != model.BookingStatusPendingPayment {
			return "", "", fmt.Errorf("%w: payment failure for %s booking", model.ErrInvalidTransition, current.Status)
		}
		return model.BookingStatusCancelled, reason, nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.EventBookingCancelled, booking)
	return booking, nil
}

type decideFunc func(current *model.Booking, now time.Time) (model.BookingStatus, model.CancelReason, error)

// transition меняет статус под блокировкой ментора. Второй результат сообщает,
// что вместо запрошенного перехода бронирование было отменено по истечении срока.
func (s *BookingService) transition(ctx context.Context, id uuid.UUID, decide decideFunc) (*model.Booking, bool, error) {
	found, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, false, err
	}

	unlock, err := s.locker.Lock(ctx, lock.MentorKey(found.MentorID))
	if err != nil {
		return nil, false, fmt.Errorf("lock mentor: %w", err)
	}
	defer unlock()

	// Перечитываем под блокировкой: статус мог измениться
	current, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, false, err
	}

	now := s.now().UTC()
	next, reason, err := decide(current, now)
	if err != nil {
		return nil, false, err
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, false, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, current.Status, next)
	}

	updated, err := s.bookings.Transition(ctx, id, current.Status, next, reason)
	if err != nil {
		return nil, false, err
	}

	s.logger.Info("Booking status changed",
		zap.String("booking_id", id.String()),
		zap.String("mentor_id", updated.MentorID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next)),
		zap.String("reason", string(reason)),
	)

	expired := reason == model.CancelReasonExpired
	return updated, expired, nil
}

// HandlePaymentEvent применяет событие платёжного провайдера.
// Повторная доставка уже применённого события возвращает бронирование без изменений.
func (s *BookingService) HandlePaymentEvent(ctx context.Context, event PaymentEvent) (*model.Booking, error) {
	switch event.Outcome {
	case PaymentSucceeded:
		booking, err := s.Confirm(ctx, event.BookingID)
		if errors.Is(err, model.ErrInvalidTransition) {
			if current, getErr := s.GetBooking(ctx, event.BookingID); getErr == nil && current.Status == model.BookingStatusConfirmed {
				return current, nil
			}
		}
		return booking, err

	case PaymentFailed:
		booking, err := s.cancel(ctx, event.BookingID, model.CancelReasonPaymentFailed)
		if errors.Is(err, model.ErrInvalidTransition) {
			if current, getErr := s.GetBooking(ctx, event.BookingID); getErr == nil && current.Status == model.BookingStatusCancelled {
				return current, nil
			}
		}
		return booking, err

	default:
		return nil, fmt.Errorf("%w: unknown payment outcome %q", model.ErrInvalidRequest, event.Outcome)
	}
}

// ExpirePending отменяет неоплаченные бронирования с истёкшим сроком.
// Ошибки отдельных бронирований не прерывают обход; они вернутся вместе и будут повторены на следующем запуске.
func (s *BookingService) ExpirePending(ctx context.Context) (int, error) {
	now := s.now().UTC()

	expired, err := s.bookings.ListExpiredPending(ctx, now, s.cfg.SweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list expired bookings: %w", err)
	}

	var (
		count int
		errs  []error
	)
	for _, candidate := range expired {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		booking, _, err := s.transition(ctx, candidate.ID, func(current *model.Booking, now time.Time) (model.BookingStatus, model.CancelReason, error) {
			if !current.IsExpired(now) {
				return "", "", errAlreadySettled
			}
			return model.BookingStatusCancelled, model.CancelReasonExpired, nil
		})
		if errors.Is(err, errAlreadySettled) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("expire booking %s: %w", candidate.ID, err))
			continue
		}

		count++
		s.publish(ctx, notify.EventBookingCancelled, booking)
	}

	return count, errors.Join(errs...)
}

// errAlreadySettled бронирование оплатили или отменили, пока шёл обход
var errAlreadySettled = errors.New("booking already settled")

func (s *BookingService) publish(ctx context.Context, eventType notify.EventType, booking *model.Booking) {
	event := notify.NewEvent(eventType, booking, s.now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish booking event",
			zap.String("event", string(eventType)),
			zap.String("booking_id", booking.ID.String()),
			zap.Error(err),
		)
	}
}
