package availability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/interval"
	"github.com/Freeeeeet/mentor_scheduler/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func utc(date string, clock string) time.Time {
	d := model.MustDate(date)
	c := model.MustClock(clock)
	return time.Date(d.Year, d.Month, d.Day, c.Hour(), c.Minute(), 0, 0, time.UTC)
}

func weekly(wd model.Weekday, start, end string) model.WeeklySlot {
	return model.WeeklySlot{ID: uuid.New(), Weekday: wd, Start: model.MustClock(start), End: model.MustClock(end)}
}

func override(kind model.OverrideKind, date, start, end string) model.OverrideSlot {
	return model.OverrideSlot{ID: uuid.New(), Kind: kind, Date: model.MustDate(date), Start: model.MustClock(start), End: model.MustClock(end)}
}

func dateRange(from, to string) model.DateRange {
	return model.DateRange{From: model.MustDate(from), To: model.MustDate(to)}
}

func TestLocalToUTC(t *testing.T) {
	t.Parallel()

	newYork, err := LoadLocation("America/New_York")
	require.NoError(t, err)

	t.Run("utc is identity", func(t *testing.T) {
		got, err := LocalToUTC(model.MustDate("2026-03-02"), model.MustClock("18:00"), time.UTC)
		require.NoError(t, err)
		assert.Equal(t, utc("2026-03-02", "18:00"), got)
	})

	t.Run("regular offset", func(t *testing.T) {
		got, err := LocalToUTC(model.MustDate("2026-07-01"), model.MustClock("09:00"), newYork)
		require.NoError(t, err)
		assert.Equal(t, utc("2026-07-01", "13:00"), got)
	})

	t.Run("dst gap is rejected", func(t *testing.T) {
		_, err := LocalToUTC(model.MustDate("2026-03-08"), model.MustClock("02:30"), newYork)
		assert.ErrorIs(t, err, model.ErrInvalidLocalTime)
	})

	t.Run("dst overlap resolves to earlier instant", func(t *testing.T) {
		got, err := LocalToUTC(model.MustDate("2026-11-01"), model.MustClock("01:30"), newYork)
		require.NoError(t, err)
		// 01:30 EDT (UTC-4), а не 01:30 EST (UTC-5)
		assert.Equal(t, utc("2026-11-01", "05:30"), got)
	})

	t.Run("invalid timezone names", func(t *testing.T) {
		for _, name := range []string{"", "Local", "Mars/Olympus"} {
			_, err := LoadLocation(name)
			assert.ErrorIs(t, err, model.ErrInvalidTimezone, name)
		}
	})
}

func TestExpander_Expand(t *testing.T) {
	t.Parallel()

	e := NewExpander()
	slots := []model.WeeklySlot{weekly(model.Monday, "18:00", "21:00")}
	rng := dateRange("2026-03-02", "2026-03-15") // 14 дней начиная с понедельника

	t.Run("monday evening over two weeks", func(t *testing.T) {
		var got []model.ResolvedInterval
		for ri, err := range e.Expand(slots, time.UTC, rng) {
			require.NoError(t, err)
			got = append(got, ri)
		}

		require.Len(t, got, 2)
		assert.Equal(t, utc("2026-03-02", "18:00"), got[0].Start)
		assert.Equal(t, utc("2026-03-02", "21:00"), got[0].End)
		assert.Equal(t, utc("2026-03-09", "18:00"), got[1].Start)
		assert.Equal(t, utc("2026-03-09", "21:00"), got[1].End)
		for _, ri := range got {
			assert.Equal(t, model.SourceRecurring, ri.Source)
			assert.Equal(t, slots[0].ID, ri.SlotID)
		}
	})

	t.Run("sequence is restartable", func(t *testing.T) {
		seq := e.Expand(slots, time.UTC, rng)
		count := func() int {
			n := 0
			for _, err := range seq {
				require.NoError(t, err)
				n++
			}
			return n
		}
		assert.Equal(t, 2, count())
		assert.Equal(t, 2, count())
	})

	t.Run("stops early when consumer breaks", func(t *testing.T) {
		n := 0
		for range e.Expand(slots, time.UTC, dateRange("2026-03-02", "2026-06-01")) {
			n++
			if n == 3 {
				break
			}
		}
		assert.Equal(t, 3, n)
	})

	t.Run("nothing outside the range", func(t *testing.T) {
		for ri, err := range e.Expand(slots, time.UTC, dateRange("2026-03-03", "2026-03-08")) {
			require.NoError(t, err)
			t.Fatalf("unexpected interval %s", ri.Interval)
		}
	})

	t.Run("dst gap surfaces as error", func(t *testing.T) {
		newYork, err := LoadLocation("America/New_York")
		require.NoError(t, err)

		var gotErr error
		for _, err := range e.Expand([]model.WeeklySlot{weekly(model.Sunday, "02:30", "04:00")}, newYork, dateRange("2026-03-08", "2026-03-08")) {
			gotErr = err
		}
		assert.ErrorIs(t, gotErr, model.ErrInvalidLocalTime)
	})
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil)
	base := func(overrides ...model.OverrideSlot) *model.MentorSchedule {
		return &model.MentorSchedule{
			MentorID:  "mentor-1",
			Timezone:  "UTC",
			Weekly:    []model.WeeklySlot{weekly(model.Monday, "18:00", "21:00")},
			Overrides: overrides,
		}
	}
	monday := dateRange("2026-03-02", "2026-03-02")

	t.Run("block inside splits interval", func(t *testing.T) {
		res, err := r.Resolve(base(override(model.OverrideBlock, "2026-03-02", "19:00", "20:00")), monday)
		require.NoError(t, err)
		require.Len(t, res.Intervals, 2)
		assert.Equal(t, interval.New(utc("2026-03-02", "18:00"), utc("2026-03-02", "19:00")), res.Intervals[0].Interval)
		assert.Equal(t, interval.New(utc("2026-03-02", "20:00"), utc("2026-03-02", "21:00")), res.Intervals[1].Interval)
		assert.Equal(t, model.SourceRecurring, res.Intervals[1].Source)
	})

	t.Run("block covering interval removes it", func(t *testing.T) {
		res, err := r.Resolve(base(override(model.OverrideBlock, "2026-03-02", "17:00", "22:00")), monday)
		require.NoError(t, err)
		assert.Empty(t, res.Intervals)
	})

	t.Run("overlapping blocks are unioned", func(t *testing.T) {
		res, err := r.Resolve(base(
			override(model.OverrideBlock, "2026-03-02", "18:30", "19:30"),
			override(model.OverrideBlock, "2026-03-02", "19:00", "20:00"),
		), monday)
		require.NoError(t, err)
		require.Len(t, res.Intervals, 2)
		assert.Equal(t, utc("2026-03-02", "18:30"), res.Intervals[0].End)
		assert.Equal(t, utc("2026-03-02", "20:00"), res.Intervals[1].Start)
	})

	t.Run("block on another date has no effect", func(t *testing.T) {
		res, err := r.Resolve(base(override(model.OverrideBlock, "2026-03-03", "18:00", "21:00")), monday)
		require.NoError(t, err)
		require.Len(t, res.Intervals, 1)
	})

	t.Run("add on empty date is standalone", func(t *testing.T) {
		add := override(model.OverrideAdd, "2026-03-04", "10:00", "11:00")
		res, err := r.Resolve(base(add), dateRange("2026-03-02", "2026-03-08"))
		require.NoError(t, err)
		require.Len(t, res.Intervals, 2)
		assert.Equal(t, model.SourceOverrideAdd, res.Intervals[1].Source)
		assert.Equal(t, add.ID, res.Intervals[1].SlotID)
		assert.Equal(t, interval.New(utc("2026-03-04", "10:00"), utc("2026-03-04", "11:00")), res.Intervals[1].Interval)
		assert.Empty(t, res.Rejected)
	})

	t.Run("overlapping add is rejected", func(t *testing.T) {
		add := override(model.OverrideAdd, "2026-03-02", "20:00", "22:00")
		res, err := r.Resolve(base(add), monday)
		require.NoError(t, err)
		require.Len(t, res.Intervals, 1)
		assert.Equal(t, model.SourceRecurring, res.Intervals[0].Source)
		require.Len(t, res.Rejected, 1)
		assert.ErrorIs(t, res.Rejected[0], model.ErrOverlappingOverride)
		assert.Equal(t, add.ID, res.Rejected[0].Override.ID)
	})

	t.Run("add into blocked gap is accepted", func(t *testing.T) {
		res, err := r.Resolve(base(
			override(model.OverrideBlock, "2026-03-02", "18:00", "21:00"),
			override(model.OverrideAdd, "2026-03-02", "19:00", "20:00"),
		), monday)
		require.NoError(t, err)
		require.Len(t, res.Intervals, 1)
		assert.Equal(t, model.SourceOverrideAdd, res.Intervals[0].Source)
	})

	t.Run("add in dst gap is rejected with normalization error", func(t *testing.T) {
		add := override(model.OverrideAdd, "2026-03-08", "02:30", "04:00")
		res, err := r.Resolve(&model.MentorSchedule{
			MentorID:  "mentor-1",
			Timezone:  "America/New_York",
			Overrides: []model.OverrideSlot{add},
		}, dateRange("2026-03-08", "2026-03-08"))
		require.NoError(t, err)
		assert.Empty(t, res.Intervals)
		require.Len(t, res.Rejected, 1)
		assert.ErrorIs(t, res.Rejected[0], model.ErrInvalidLocalTime)
		assert.NotErrorIs(t, res.Rejected[0], model.ErrOverlappingOverride)
		assert.True(t, res.Rejected[0].Conflict.IsEmpty())
		assert.Equal(t, add.ID, res.Rejected[0].Override.ID)
	})

	t.Run("adjacent add is accepted, second overlapping add is rejected", func(t *testing.T) {
		res, err := r.Resolve(base(
			override(model.OverrideAdd, "2026-03-02", "21:00", "22:00"),
			override(model.OverrideAdd, "2026-03-02", "21:30", "23:00"),
		), monday)
		require.NoError(t, err)
		assert.Len(t, res.Intervals, 2)
		assert.Len(t, res.Rejected, 1)
	})

	t.Run("resolving twice is idempotent", func(t *testing.T) {
		schedule := base(
			override(model.OverrideBlock, "2026-03-09", "19:00", "20:00"),
			override(model.OverrideAdd, "2026-03-05", "08:00", "09:30"),
		)
		rng := dateRange("2026-03-01", "2026-03-31")
		first, err := r.Resolve(schedule, rng)
		require.NoError(t, err)
		second, err := r.Resolve(schedule, rng)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestResolver_CheckOverrides(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil)
	schedule := &model.MentorSchedule{
		MentorID: "mentor-1",
		Timezone: "America/New_York",
		Weekly:   []model.WeeklySlot{weekly(model.Monday, "18:00", "21:00")},
	}

	schedule.Overrides = []model.OverrideSlot{override(model.OverrideAdd, "2026-03-04", "10:00", "11:00")}
	assert.NoError(t, r.CheckOverrides(schedule))

	schedule.Overrides = []model.OverrideSlot{override(model.OverrideAdd, "2026-03-02", "17:00", "18:30")}
	assert.ErrorIs(t, r.CheckOverrides(schedule), model.ErrOverlappingOverride)

	schedule.Overrides = []model.OverrideSlot{override(model.OverrideBlock, "2026-03-08", "02:15", "03:30")}
	assert.ErrorIs(t, r.CheckOverrides(schedule), model.ErrInvalidLocalTime)
}

type fakeSchedules struct {
	mu        sync.Mutex
	schedules map[string]*model.MentorSchedule
	calls     int
}

func (f *fakeSchedules) GetSchedule(_ context.Context, mentorID string) (*model.MentorSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.schedules[mentorID].Clone(), nil
}

type fakeBookings struct {
	bookings []*model.Booking
}

func (f *fakeBookings) ListActiveByMentor(_ context.Context, mentorID string, window interval.Interval) ([]*model.Booking, error) {
	var out []*model.Booking
	for _, b := range f.bookings {
		if b.MentorID == mentorID && b.Status.IsActive() && b.Interval.Overlaps(window) {
			out = append(out, b)
		}
	}
	return out, nil
}

func newTestStore(t *testing.T, schedules *fakeSchedules, bookings *fakeBookings) *Store {
	t.Helper()
	store, err := NewStore(schedules, bookings, nil, StoreConfig{HorizonDays: 60, CacheSize: 16}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestStore(t *testing.T) {
	t.Parallel()

	schedule := &model.MentorSchedule{
		MentorID:           "mentor-1",
		Timezone:           "UTC",
		MinBookableMinutes: 30,
		Weekly: []model.WeeklySlot{
			weekly(model.Monday, "18:00", "21:00"),
		},
		Overrides: []model.OverrideSlot{
			override(model.OverrideAdd, "2026-03-02", "21:00", "22:00"),
		},
		Version: 1,
	}
	schedules := &fakeSchedules{schedules: map[string]*model.MentorSchedule{"mentor-1": schedule}}
	bookings := &fakeBookings{bookings: []*model.Booking{
		{
			MentorID: "mentor-1",
			Interval: interval.New(utc("2026-03-09", "19:00"), utc("2026-03-09", "20:00")),
			Status:   model.BookingStatusConfirmed,
		},
		{
			MentorID: "mentor-1",
			Interval: interval.New(utc("2026-03-02", "18:00"), utc("2026-03-02", "19:00")),
			Status:   model.BookingStatusCancelled,
		},
	}}
	store := newTestStore(t, schedules, bookings)
	ctx := context.Background()

	t.Run("open intervals exclude active bookings", func(t *testing.T) {
		open, err := store.OpenIntervals(ctx, "mentor-1", dateRange("2026-03-02", "2026-03-15"))
		require.NoError(t, err)

		assert.Equal(t, []interval.Interval{
			interval.New(utc("2026-03-02", "18:00"), utc("2026-03-02", "21:00")),
			interval.New(utc("2026-03-02", "21:00"), utc("2026-03-02", "22:00")),
			interval.New(utc("2026-03-09", "18:00"), utc("2026-03-09", "19:00")),
			interval.New(utc("2026-03-09", "20:00"), utc("2026-03-09", "21:00")),
		}, open)
		for _, iv := range open {
			for _, b := range bookings.bookings {
				if b.Status.IsActive() {
					assert.False(t, iv.Overlaps(b.Interval))
				}
			}
		}
	})

	t.Run("is available", func(t *testing.T) {
		ok, err := store.IsAvailable(ctx, "mentor-1", interval.New(utc("2026-03-02", "20:30"), utc("2026-03-02", "21:30")))
		require.NoError(t, err)
		assert.True(t, ok, "adjacent recurring and add intervals are bookable as one")

		ok, err = store.IsAvailable(ctx, "mentor-1", interval.New(utc("2026-03-09", "18:30"), utc("2026-03-09", "19:30")))
		require.NoError(t, err)
		assert.False(t, ok, "overlaps a confirmed booking")

		ok, err = store.IsAvailable(ctx, "mentor-1", interval.New(utc("2026-03-03", "18:00"), utc("2026-03-03", "19:00")))
		require.NoError(t, err)
		assert.False(t, ok, "no availability on tuesday")
	})

	t.Run("range too wide", func(t *testing.T) {
		_, err := store.OpenIntervals(ctx, "mentor-1", dateRange("2026-03-01", "2026-04-30"))
		assert.ErrorIs(t, err, model.ErrRangeTooWide)
	})

	t.Run("schedule not found", func(t *testing.T) {
		_, err := store.OpenIntervals(ctx, "nobody", dateRange("2026-03-01", "2026-03-02"))
		assert.ErrorIs(t, err, model.ErrScheduleNotFound)
	})
}

func TestStore_CacheFollowsScheduleVersion(t *testing.T) {
	t.Parallel()

	schedule := &model.MentorSchedule{
		MentorID: "mentor-1",
		Timezone: "UTC",
		Weekly:   []model.WeeklySlot{weekly(model.Monday, "18:00", "21:00")},
		Version:  1,
	}
	schedules := &fakeSchedules{schedules: map[string]*model.MentorSchedule{"mentor-1": schedule}}
	store := newTestStore(t, schedules, &fakeBookings{})
	ctx := context.Background()
	rng := dateRange("2026-03-02", "2026-03-08")

	first, err := store.Available(ctx, "mentor-1", rng)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Изменение без смены версии не видно: запись кэша актуальна для версии 1
	schedules.mu.Lock()
	schedule.Weekly = append(schedule.Weekly, weekly(model.Tuesday, "09:00", "10:00"))
	schedules.mu.Unlock()

	cached, err := store.Available(ctx, "mentor-1", rng)
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	schedules.mu.Lock()
	schedule.Version = 2
	schedules.mu.Unlock()

	fresh, err := store.Available(ctx, "mentor-1", rng)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}
