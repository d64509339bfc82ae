package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/mentor_scheduler/internal/availability"
	"github.com/Freeeeeet/mentor_scheduler/internal/interval"
	"github.com/Freeeeeet/mentor_scheduler/internal/lock"
	"github.com/Freeeeeet/mentor_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxMinBookableMinutes = 24 * 60

// CreateScheduleInput данные онбординга ментора
type CreateScheduleInput struct {
	MentorID           string
	Timezone           string
	MinBookableMinutes int // 0 — значение по умолчанию из конфигурации
	Weekly             []model.WeeklySlot
	Overrides          []model.OverrideSlot
}

// AvailabilityService редактирование расписаний и публичный запрос свободного времени
type AvailabilityService struct {
	schedules                 ScheduleRepository
	store                     *availability.Store
	resolver                  *availability.Resolver
	locker                    lock.Locker
	defaultMinBookableMinutes int
	logger                    *zap.Logger
}

func NewAvailabilityService(
	schedules ScheduleRepository,
	store *availability.Store,
	resolver *availability.Resolver,
	locker lock.Locker,
	defaultMinBookableMinutes int,
	logger *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		schedules:                 schedules,
		store:                     store,
		resolver:                  resolver,
		locker:                    locker,
		defaultMinBookableMinutes: defaultMinBookableMinutes,
		logger:                    logger,
	}
}

// CreateSchedule создаёт расписание ментора после проверки всех слотов
func (s *AvailabilityService) CreateSchedule(ctx context.Context, in CreateScheduleInput) (*model.MentorSchedule, error) {
	mentorID := strings.TrimSpace(in.MentorID)
	if mentorID == "" {
		return nil, fmt.Errorf("%w: mentor id is required", model.ErrInvalidRequest)
	}
	if _, err := availability.LoadLocation(in.Timezone); err != nil {
		return nil, err
	}

	minutes := in.MinBookableMinutes
	if minutes == 0 {
		minutes = s.defaultMinBookableMinutes
	}
	if minutes <= 0 || minutes > maxMinBookableMinutes {
		return nil, fmt.Errorf("%w: min bookable minutes %d", model.ErrInvalidRequest, minutes)
	}

	schedule := &model.MentorSchedule{
		MentorID:           mentorID,
		Timezone:           in.Timezone,
		MinBookableMinutes: minutes,
		Weekly:             withWeeklyIDs(in.Weekly),
		Overrides:          withOverrideIDs(in.Overrides),
	}
	if err := s.validate(schedule); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, lock.MentorKey(mentorID))
	if err != nil {
		return nil, fmt.Errorf("lock mentor: %w", err)
	}
	defer unlock()

	if err := s.schedules.Create(ctx, schedule); err != nil {
		return nil, err
	}

	s.logger.Info("Schedule created",
		zap.String("mentor_id", mentorID),
		zap.String("timezone", schedule.Timezone),
		zap.Int("min_bookable_minutes", minutes),
	)
	return schedule, nil
}

// GetSchedule возвращает расписание или ErrScheduleNotFound
func (s *AvailabilityService) GetSchedule(ctx context.Context, mentorID string) (*model.MentorSchedule, error) {
	return s.store.Schedule(ctx, mentorID)
}

// SetWeeklySlots заменяет недельные слоты. Существующие overrides проверяются
// против нового набора: ADD, который начал бы пересекаться с недельным слотом, — ошибка конфигурации.
func (s *AvailabilityService) SetWeeklySlots(ctx context.Context, mentorID string, slots []model.WeeklySlot) (*model.MentorSchedule, error) {
	slots = withWeeklyIDs(slots)

	return s.edit(ctx, mentorID, func(candidate *model.MentorSchedule) (*model.MentorSchedule, error) {
		candidate.Weekly = slots
		if err := s.validate(candidate); err != nil {
			return nil, err
		}
		return s.schedules.ReplaceWeeklySlots(ctx, mentorID, slots)
	})
}

// SetOverrideSlots заменяет overrides ментора
func (s *AvailabilityService) SetOverrideSlots(ctx context.Context, mentorID string, overrides []model.OverrideSlot) (*model.MentorSchedule, error) {
	overrides = withOverrideIDs(overrides)

	return s.edit(ctx, mentorID, func(candidate *model.MentorSchedule) (*model.MentorSchedule, error) {
		candidate.Overrides = overrides
		if err := s.validate(candidate); err != nil {
			return nil, err
		}
		return s.schedules.ReplaceOverrideSlots(ctx, mentorID, overrides)
	})
}

// edit выполняет изменение под блокировкой ментора. Новая версия расписания
// делает устаревшими все закэшированные интервалы.
func (s *AvailabilityService) edit(ctx context.Context, mentorID string, apply func(candidate *model.MentorSchedule) (*model.MentorSchedule, error)) (*model.MentorSchedule, error) {
	unlock, err := s.locker.Lock(ctx, lock.MentorKey(mentorID))
	if err != nil {
		return nil, fmt.Errorf("lock mentor: %w", err)
	}
	defer unlock()

	current, err := s.store.Schedule(ctx, mentorID)
	if err != nil {
		return nil, err
	}

	updated, err := apply(current.Clone())
	if err != nil {
		s.logger.Info("Schedule edit rejected",
			zap.String("mentor_id", mentorID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Schedule updated",
		zap.String("mentor_id", mentorID),
		zap.Int64("version", updated.Version),
		zap.Int("weekly_slots", len(updated.Weekly)),
		zap.Int("override_slots", len(updated.Overrides)),
	)
	return updated, nil
}

func (s *AvailabilityService) validate(schedule *model.MentorSchedule) error {
	if err := model.ValidateWeeklySlots(schedule.Weekly); err != nil {
		return err
	}
	return s.resolver.CheckOverrides(schedule)
}

// GetOpenSlots свободные интервалы ментора в диапазоне дат [from, to] (UTC, по возрастанию)
func (s *AvailabilityService) GetOpenSlots(ctx context.Context, mentorID string, from, to model.Date) ([]interval.Interval, error) {
	open, err := s.store.OpenIntervals(ctx, mentorID, model.DateRange{From: from, To: to})
	if err != nil {
		return nil, err
	}
	return open, nil
}

// GetAvailability доступные интервалы с источником (без учёта бронирований)
func (s *AvailabilityService) GetAvailability(ctx context.Context, mentorID string, from, to model.Date) ([]model.ResolvedInterval, error) {
	return s.store.Available(ctx, mentorID, model.DateRange{From: from, To: to})
}

func withWeeklyIDs(slots []model.WeeklySlot) []model.WeeklySlot {
	out := append([]model.WeeklySlot(nil), slots...)
	for i := range out {
		if out[i].ID == uuid.Nil {
			out[i].ID = uuid.New()
		}
	}
	return out
}

func withOverrideIDs(overrides []model.OverrideSlot) []model.OverrideSlot {
	out := append([]model.OverrideSlot(nil), overrides...)
	for i := range out {
		if out[i].ID == uuid.Nil {
			out[i].ID = uuid.New()
		}
	}
	return out
}
