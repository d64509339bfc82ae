package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/model"
)

// ScheduleRepository хранит расписания в памяти процесса
type ScheduleRepository struct {
	mu        sync.RWMutex
	schedules map[string]*model.MentorSchedule
	now       func() time.Time
}

func NewScheduleRepository() *ScheduleRepository {
	return &ScheduleRepository{
		schedules: make(map[string]*model.MentorSchedule),
		now:       time.Now,
	}
}

func (r *ScheduleRepository) Create(_ context.Context, schedule *model.MentorSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedules[schedule.MentorID]; ok {
		return fmt.Errorf("create schedule: %w", model.ErrScheduleExists)
	}

	now := r.now().UTC()
	schedule.Version = 1
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	r.schedules[schedule.MentorID] = schedule.Clone()
	return nil
}

// GetSchedule возвращает копию расписания или nil, nil
func (r *ScheduleRepository) GetSchedule(_ context.Context, mentorID string) (*model.MentorSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.schedules[mentorID].Clone(), nil
}

func (r *ScheduleRepository) ReplaceWeeklySlots(_ context.Context, mentorID string, slots []model.WeeklySlot) (*model.MentorSchedule, error) {
	return r.update(mentorID, func(s *model.MentorSchedule) {
		s.Weekly = append([]model.WeeklySlot(nil), slots...)
	})
}

func (r *ScheduleRepository) ReplaceOverrideSlots(_ context.Context, mentorID string, overrides []model.OverrideSlot) (*model.MentorSchedule, error) {
	return r.update(mentorID, func(s *model.MentorSchedule) {
		s.Overrides = append([]model.OverrideSlot(nil), overrides...)
	})
}

func (r *ScheduleRepository) update(mentorID string, fn func(s *model.MentorSchedule)) (*model.MentorSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.schedules[mentorID]
	if !ok {
		return nil, fmt.Errorf("update schedule: %w", model.ErrScheduleNotFound)
	}

	// Старую запись не трогаем: её копии могли уйти читателям
	next := current.Clone()
	fn(next)
	next.Version++
	next.UpdatedAt = r.now().UTC()
	r.schedules[mentorID] = next

	return next.Clone(), nil
}
