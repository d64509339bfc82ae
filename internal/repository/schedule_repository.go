package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/model"
	"github.com/Freeeeeet/mentor_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ScheduleRepository хранит расписания менторов: недельные слоты и overrides
type ScheduleRepository struct {
	*base.Repository
	logger *zap.Logger
}

// NewScheduleRepository создаёт новый репозиторий
func NewScheduleRepository(pool *pgxpool.Pool, logger *zap.Logger) *ScheduleRepository {
	return &ScheduleRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

// Create создаёт расписание ментора вместе со слотами
func (r *ScheduleRepository) Create(ctx context.Context, schedule *model.MentorSchedule) error {
	return r.InTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO mentor_schedules (mentor_id, timezone, min_bookable_minutes, version)
			VALUES ($1, $2, $3, 1)
			RETURNING version, created_at, updated_at
		`

		err := tx.QueryRow(ctx, query,
			schedule.MentorID,
			schedule.Timezone,
			schedule.MinBookableMinutes,
		).Scan(&schedule.Version, &schedule.CreatedAt, &schedule.UpdatedAt)
		if err != nil {
			if base.IsUniqueViolation(err) {
				return fmt.Errorf("create schedule: %w", model.ErrScheduleExists)
			}
			return fmt.Errorf("create schedule: %w", err)
		}

		if err := copyWeeklySlots(ctx, tx, schedule.MentorID, schedule.Weekly); err != nil {
			return err
		}
		if err := copyOverrideSlots(ctx, tx, schedule.MentorID, schedule.Overrides); err != nil {
			return err
		}

		r.logger.Info("Mentor schedule created",
			zap.String("mentor_id", schedule.MentorID),
			zap.String("timezone", schedule.Timezone),
			zap.Int("weekly_slots", len(schedule.Weekly)),
			zap.Int("override_slots", len(schedule.Overrides)),
		)
		return nil
	})
}

// GetSchedule получает расписание ментора. Если расписания нет, возвращает nil, nil.
func (r *ScheduleRepository) GetSchedule(ctx context.Context, mentorID string) (*model.MentorSchedule, error) {
	query := `
		SELECT mentor_id, timezone, min_bookable_minutes, version, created_at, updated_at
		FROM mentor_schedules
		WHERE mentor_id = $1
	`

	schedule := &model.MentorSchedule{}
	err := r.QueryRow(ctx, query, mentorID).Scan(
		&schedule.MentorID,
		&schedule.Timezone,
		&schedule.MinBookableMinutes,
		&schedule.Version,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if base.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	schedule.Weekly, err = r.weeklySlots(ctx, mentorID)
	if err != nil {
		return nil, err
	}

	schedule.Overrides, err = r.overrideSlots(ctx, mentorID)
	if err != nil {
		return nil, err
	}

	return schedule, nil
}

func (r *ScheduleRepository) weeklySlots(ctx context.Context, mentorID string) ([]model.WeeklySlot, error) {
	query := `
		SELECT id, weekday, start_minute, end_minute
		FROM weekly_slots
		WHERE mentor_id = $1
		ORDER BY weekday, start_minute
	`

	rows, err := r.Query(ctx, query, mentorID)
	if err != nil {
		return nil, fmt.Errorf("get weekly slots: %w", err)
	}
	defer rows.Close()

	var slots []model.WeeklySlot
	for rows.Next() {
		var slot model.WeeklySlot
		if err := rows.Scan(&slot.ID, &slot.Weekday, &slot.Start, &slot.End); err != nil {
			return nil, fmt.Errorf("scan weekly slot: %w", err)
		}
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

func (r *ScheduleRepository) overrideSlots(ctx context.Context, mentorID string) ([]model.OverrideSlot, error) {
	query := `
		SELECT id, override_date, start_minute, end_minute, kind
		FROM override_slots
		WHERE mentor_id = $1
		ORDER BY override_date, start_minute
	`

	rows, err := r.Query(ctx, query, mentorID)
	if err != nil {
		return nil, fmt.Errorf("get override slots: %w", err)
	}
	defer rows.Close()

	var slots []model.OverrideSlot
	for rows.Next() {
		var (
			slot model.OverrideSlot
			date time.Time
		)
		if err := rows.Scan(&slot.ID, &date, &slot.Start, &slot.End, &slot.Kind); err != nil {
			return nil, fmt.Errorf("scan override slot: %w", err)
		}
		slot.Date = model.DateOf(date)
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

// ReplaceWeeklySlots заменяет недельные слоты и увеличивает версию расписания
func (r *ScheduleRepository) ReplaceWeeklySlots(ctx context.Context, mentorID string, slots []model.WeeklySlot) (*model.MentorSchedule, error) {
	err := r.InTx(ctx, func(tx pgx.Tx) error {
		if err := bumpVersion(ctx, tx, mentorID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM weekly_slots WHERE mentor_id = $1`, mentorID); err != nil {
			return fmt.Errorf("delete weekly slots: %w", err)
		}
		return copyWeeklySlots(ctx, tx, mentorID, slots)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Weekly slots replaced",
		zap.String("mentor_id", mentorID),
		zap.Int("count", len(slots)),
	)

	return r.GetSchedule(ctx, mentorID)
}

// ReplaceOverrideSlots заменяет overrides и увеличивает версию расписания
func (r *ScheduleRepository) ReplaceOverrideSlots(ctx context.Context, mentorID string, overrides []model.OverrideSlot) (*model.MentorSchedule, error) {
	err := r.InTx(ctx, func(tx pgx.Tx) error {
		if err := bumpVersion(ctx, tx, mentorID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM override_slots WHERE mentor_id = $1`, mentorID); err != nil {
			return fmt.Errorf("delete override slots: %w", err)
		}
		return copyOverrideSlots(ctx, tx, mentorID, overrides)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Override slots replaced",
		zap.String("mentor_id", mentorID),
		zap.Int("count", len(overrides)),
	)

	return r.GetSchedule(ctx, mentorID)
}

func bumpVersion(ctx context.Context, tx pgx.Tx, mentorID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE mentor_schedules
		SET version = version + 1, updated_at = NOW()
		WHERE mentor_id = $1
	`, mentorID)
	if err != nil {
		return fmt.Errorf("bump schedule version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bump schedule version: %w", model.ErrScheduleNotFound)
	}
	return nil
}

func copyWeeklySlots(ctx context.Context, tx pgx.Tx, mentorID string, slots []model.WeeklySlot) error {
	if len(slots) == 0 {
		return nil
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"weekly_slots"},
		[]string{"id", "mentor_id", "weekday", "start_minute", "end_minute"},
		pgx.CopyFromSlice(len(slots), func(i int) ([]any, error) {
			s := slots[i]
			return []any{s.ID, mentorID, int(s.Weekday), int(s.Start), int(s.End)}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy weekly slots: %w", err)
	}
	return nil
}

func copyOverrideSlots(ctx context.Context, tx pgx.Tx, mentorID string, overrides []model.OverrideSlot) error {
	if len(overrides) == 0 {
		return nil
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"override_slots"},
		[]string{"id", "mentor_id", "override_date", "start_minute", "end_minute", "kind"},
		pgx.CopyFromSlice(len(overrides), func(i int) ([]any, error) {
			o := overrides[i]
			return []any{o.ID, mentorID, o.Date.In(time.UTC), int(o.Start), int(o.End), string(o.Kind)}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy override slots: %w", err)
	}
	return nil
}
