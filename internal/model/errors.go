package model

import (
	"errors"
	"fmt"

	"github.com/Freeeeeet/mentor_scheduler/internal/interval"
)

var (
	ErrInvalidLocalTime      = errors.New("local time falls into a DST gap")
	ErrInvalidTimezone       = errors.New("invalid timezone")
	ErrInvalidDuration       = errors.New("invalid booking duration")
	ErrInvalidSlot           = errors.New("invalid slot")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrOverlappingOverride   = errors.New("override overlaps existing availability")
	ErrOverlappingWeeklySlot = errors.New("weekly slots overlap")
	ErrRangeTooWide          = errors.New("requested range is wider than the horizon")
	ErrScheduleNotFound      = errors.New("schedule not found")
	ErrScheduleExists        = errors.New("schedule already exists")
	ErrSlotUnavailable       = errors.New("slot unavailable")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrInvalidTransition     = errors.New("invalid booking status transition")
)

// OverrideConflictError отклонённый ADD override.
// Conflict интервал, с которым он пересёкся; Cause заполняется, если границы ADD
// не удалось перевести в абсолютное время (например, DST gap), Conflict тогда пуст.
type OverrideConflictError struct {
	Override OverrideSlot
	Conflict interval.Interval
	Cause    error
}

func (e *OverrideConflictError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("override %s %s-%s rejected: %v",
			e.Override.Date, e.Override.Start, e.Override.End, e.Cause)
	}
	return fmt.Sprintf("%s: %s %s-%s conflicts with %s",
		ErrOverlappingOverride, e.Override.Date, e.Override.Start, e.Override.End, e.Conflict)
}

func (e *OverrideConflictError) Is(target error) bool {
	return e.Cause == nil && target == ErrOverlappingOverride
}

func (e *OverrideConflictError) Unwrap() error {
	return e.Cause
}
