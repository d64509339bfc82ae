package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/interval"
	"github.com/Freeeeeet/mentor_scheduler/internal/model"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// ScheduleSource отдаёт расписание ментора. Отсутствующее расписание — nil, nil.
type ScheduleSource interface {
	GetSchedule(ctx context.Context, mentorID string) (*model.MentorSchedule, error)
}

// BookingSource отдаёт активные (PENDING_PAYMENT, CONFIRMED) бронирования ментора,
// пересекающиеся с окном window
type BookingSource interface {
	ListActiveByMentor(ctx context.Context, mentorID string, window interval.Interval) ([]*model.Booking, error)
}

type StoreConfig struct {
	HorizonDays int // Максимальная ширина запроса в днях, включая обе границы
	CacheSize   int
}

type cacheKey struct {
	mentorID string
	rng      model.DateRange
}

type cacheEntry struct {
	version   int64
	intervals []model.ResolvedInterval
}

// Store объединяет вычисленную доступность ментора и занятые интервалы.
// Вычисленная доступность кэшируется по (ментор, диапазон) вместе с версией расписания;
// запись с устаревшей версией отбрасывается.
type Store struct {
	schedules   ScheduleSource
	bookings    BookingSource
	resolver    *Resolver
	cache       *lru.Cache[cacheKey, cacheEntry]
	horizonDays int
	logger      *zap.Logger
}

func NewStore(schedules ScheduleSource, bookings BookingSource, resolver *Resolver, cfg StoreConfig, logger *zap.Logger) (*Store, error) {
	if cfg.HorizonDays <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", cfg.HorizonDays)
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}

	cache, err := lru.New[cacheKey, cacheEntry](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create availability cache: %w", err)
	}

	if resolver == nil {
		resolver = NewResolver(nil)
	}

	return &Store{
		schedules:   schedules,
		bookings:    bookings,
		resolver:    resolver,
		cache:       cache,
		horizonDays: cfg.HorizonDays,
		logger:      logger,
	}, nil
}

// Schedule загружает расписание или возвращает ErrScheduleNotFound
func (s *Store) Schedule(ctx context.Context, mentorID string) (*model.MentorSchedule, error) {
	schedule, err := s.schedules.GetSchedule(ctx, mentorID)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if schedule == nil {
		return nil, fmt.Errorf("%w: mentor %s", model.ErrScheduleNotFound, mentorID)
	}
	return schedule, nil
}

func (s *Store) checkRange(rng model.DateRange) error {
	if !rng.Valid() {
		return fmt.Errorf("%w: range %s..%s", model.ErrInvalidRequest, rng.From, rng.To)
	}
	if rng.Days() > s.horizonDays {
		return fmt.Errorf("%w: %d days requested, horizon is %d", model.ErrRangeTooWide, rng.Days(), s.horizonDays)
	}
	return nil
}

// Available возвращает доступные интервалы ментора на rng (без учёта бронирований)
func (s *Store) Available(ctx context.Context, mentorID string, rng model.DateRange) ([]model.ResolvedInterval, error) {
	if err := s.checkRange(rng); err != nil {
		return nil, err
	}

	schedule, err := s.Schedule(ctx, mentorID)
	if err != nil {
		return nil, err
	}

	return s.available(schedule, rng)
}

func (s *Store) available(schedule *model.MentorSchedule, rng model.DateRange) ([]model.ResolvedInterval, error) {
	key := cacheKey{mentorID: schedule.MentorID, rng: rng}
	if entry, ok := s.cache.Get(key); ok {
		if entry.version == schedule.Version {
			return append([]model.ResolvedInterval(nil), entry.intervals...), nil
		}
		s.cache.Remove(key)
	}

	res, err := s.resolver.Resolve(schedule, rng)
	if err != nil {
		return nil, fmt.Errorf("resolve availability: %w", err)
	}

	for _, rejected := range res.Rejected {
		fields := []zap.Field{
			zap.String("mentor_id", schedule.MentorID),
			zap.String("override_id", rejected.Override.ID.String()),
			zap.String("date", rejected.Override.Date.String()),
		}
		if rejected.Cause != nil {
			fields = append(fields, zap.Error(rejected.Cause))
		} else {
			fields = append(fields, zap.String("conflict", rejected.Conflict.String()))
		}
		s.logger.Warn("Override rejected", fields...)
	}

	s.cache.Add(key, cacheEntry{version: schedule.Version, intervals: res.Intervals})
	return append([]model.ResolvedInterval(nil), res.Intervals...), nil
}

// booked возвращает занятые интервалы ментора, пересекающиеся с window
func (s *Store) booked(ctx context.Context, mentorID string, window interval.Interval) ([]interval.Interval, error) {
	bookings, err := s.bookings.ListActiveByMentor(ctx, mentorID, window)
	if err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}

	out := make([]interval.Interval, 0, len(bookings))
	for _, b := range bookings {
		if b.Status.IsActive() {
			out = append(out, b.Interval)
		}
	}
	return out, nil
}

// OpenIntervals возвращает свободные интервалы: доступность минус все активные бронирования
func (s *Store) OpenIntervals(ctx context.Context, mentorID string, rng model.DateRange) ([]interval.Interval, error) {
	if err := s.checkRange(rng); err != nil {
		return nil, err
	}

	schedule, err := s.Schedule(ctx, mentorID)
	if err != nil {
		return nil, err
	}

	available, err := s.available(schedule, rng)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, nil
	}

	loc, err := LoadLocation(schedule.Timezone)
	if err != nil {
		return nil, err
	}
	window := interval.New(rng.From.In(loc), rng.To.AddDays(1).In(loc))

	booked, err := s.booked(ctx, mentorID, window)
	if err != nil {
		return nil, err
	}

	return interval.SubtractAll(model.Intervals(available), booked), nil
}

// IsAvailable проверяет, что iv целиком лежит в доступности ментора
// и не пересекается ни с одним активным бронированием
func (s *Store) IsAvailable(ctx context.Context, mentorID string, iv interval.Interval) (bool, error) {
	schedule, err := s.Schedule(ctx, mentorID)
	if err != nil {
		return false, err
	}
	return s.isAvailable(ctx, schedule, iv)
}

func (s *Store) isAvailable(ctx context.Context, schedule *model.MentorSchedule, iv interval.Interval) (bool, error) {
	if iv.IsEmpty() {
		return false, nil
	}

	loc, err := LoadLocation(schedule.Timezone)
	if err != nil {
		return false, err
	}

	rng := CoveringRange(iv, loc)
	if err := s.checkRange(rng); err != nil {
		return false, err
	}

	available, err := s.available(schedule, rng)
	if err != nil {
		return false, err
	}
	// Соседние интервалы (например, недельный слот и ADD сразу после него) склеиваются
	if !interval.AnyContains(interval.Union(model.Intervals(available)), iv) {
		return false, nil
	}

	booked, err := s.booked(ctx, schedule.MentorID, iv)
	if err != nil {
		return false, err
	}
	return !interval.AnyOverlaps(booked, iv), nil
}

// IsAvailableFor то же, что IsAvailable, но для уже загруженного расписания.
// Используется аллокатором внутри критической секции.
func (s *Store) IsAvailableFor(ctx context.Context, schedule *model.MentorSchedule, iv interval.Interval) (bool, error) {
	return s.isAvailable(ctx, schedule, iv)
}

// CoveringRange диапазон дат в поясе loc, который покрывает интервал iv
func CoveringRange(iv interval.Interval, loc *time.Location) model.DateRange {
	from := model.DateOf(iv.Start.In(loc))
	to := model.DateOf(iv.End.Add(-time.Nanosecond).In(loc))
	if to.Before(from) {
		to = from
	}
	return model.DateRange{From: from, To: to}
}
