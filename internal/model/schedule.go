package model

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/interval"
	"github.com/google/uuid"
)

// WeeklySlot регулярное окно доступности ментора в определённый день недели
type WeeklySlot struct {
	ID      uuid.UUID `json:"id"`
	Weekday Weekday   `json:"weekday"`
	Start   Clock     `json:"start"`
	End     Clock     `json:"end"`
}

// Validate проверяет инвариант start < end в пределах одного дня
func (s WeeklySlot) Validate() error {
	if !s.Weekday.Valid() {
		return fmt.Errorf("%w: invalid weekday %d", ErrInvalidSlot, int(s.Weekday))
	}
	if s.Start >= s.End {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidSlot, s.Start, s.End)
	}
	return nil
}

// Overlaps проверяет пересечение двух weekly слотов в один и тот же день недели
func (s WeeklySlot) Overlaps(other WeeklySlot) bool {
	return s.Weekday == other.Weekday && s.Start < other.End && other.Start < s.End
}

type OverrideKind string

const (
	OverrideAdd   OverrideKind = "ADD"   // Разовое окно, которого нет в недельном расписании
	OverrideBlock OverrideKind = "BLOCK" // Отмена доступности на дату (полностью или частично)
)

func (k OverrideKind) Valid() bool {
	return k == OverrideAdd || k == OverrideBlock
}

// OverrideSlot исключение из недельного расписания на конкретную дату
type OverrideSlot struct {
	ID    uuid.UUID    `json:"id"`
	Date  Date         `json:"date"`
	Start Clock        `json:"start"`
	End   Clock        `json:"end"`
	Kind  OverrideKind `json:"kind"`
}

func (o OverrideSlot) Validate() error {
	if o.Date.IsZero() {
		return fmt.Errorf("%w: override date is required", ErrInvalidSlot)
	}
	if !o.Kind.Valid() {
		return fmt.Errorf("%w: unknown override kind %q", ErrInvalidSlot, o.Kind)
	}
	if o.Start >= o.End {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidSlot, o.Start, o.End)
	}
	return nil
}

// MentorSchedule расписание ментора: часовой пояс, недельные слоты и исключения.
// Version увеличивается при каждом изменении и используется для инвалидации кэша.
type MentorSchedule struct {
	MentorID           string         `json:"mentor_id"`
	Timezone           string         `json:"timezone"`
	MinBookableMinutes int            `json:"min_bookable_minutes"`
	Weekly             []WeeklySlot   `json:"weekly_slots"`
	Overrides          []OverrideSlot `json:"override_slots"`
	Version            int64          `json:"version"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// MinBookableUnit минимальная единица бронирования
func (s *MentorSchedule) MinBookableUnit() time.Duration {
	return time.Duration(s.MinBookableMinutes) * time.Minute
}

// Clone возвращает глубокую копию, чтобы вызывающий код не менял общие срезы
func (s *MentorSchedule) Clone() *MentorSchedule {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Weekly = append([]WeeklySlot(nil), s.Weekly...)
	cp.Overrides = append([]OverrideSlot(nil), s.Overrides...)
	return &cp
}

// ValidateWeeklySlots проверяет каждый слот и отсутствие пересечений в один день недели
func ValidateWeeklySlots(slots []WeeklySlot) error {
	for i, slot := range slots {
		if err := slot.Validate(); err != nil {
			return err
		}
		for _, other := range slots[i+1:] {
			if slot.Overlaps(other) {
				return fmt.Errorf("%w: %s %s-%s overlaps %s-%s", ErrOverlappingWeeklySlot,
					slot.Weekday, slot.Start, slot.End, other.Start, other.End)
			}
		}
	}
	return nil
}

type IntervalSource string

const (
	SourceRecurring   IntervalSource = "recurring"
	SourceOverrideAdd IntervalSource = "override-add"
)

// ResolvedInterval абсолютный интервал доступности с пометкой об источнике.
// Не сохраняется в БД, вычисляется по расписанию.
type ResolvedInterval struct {
	interval.Interval
	Source IntervalSource `json:"source"`
	Date   Date           `json:"date"`
	SlotID uuid.UUID      `json:"slot_id"`
}

// Intervals отбрасывает метки источника
func Intervals(resolved []ResolvedInterval) []interval.Interval {
	out := make([]interval.Interval, 0, len(resolved))
	for _, r := range resolved {
		out = append(out, r.Interval)
	}
	return out
}
