package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/interval"
	"github.com/Freeeeeet/mentor_scheduler/internal/model"
)

// Resolution итоговый набор доступных интервалов и отклонённые ADD overrides
type Resolution struct {
	Intervals []model.ResolvedInterval
	Rejected  []*model.OverrideConflictError
}

// Resolver накладывает overrides на развёрнутое недельное расписание
type Resolver struct {
	expander *Expander
}

func NewResolver(expander *Expander) *Resolver {
	if expander == nil {
		expander = NewExpander()
	}
	return &Resolver{expander: expander}
}

type dayOverrides struct {
	blocks []interval.Interval
	adds   []model.OverrideSlot
}

// Resolve вычисляет доступность ментора на rng. Для каждой даты:
//  1. берутся интервалы недельного расписания;
//  2. из них вычитается объединение всех BLOCK на эту дату;
//  3. добавляются ADD, если они не пересекаются с уже имеющимися интервалами,
//     иначе ADD попадает в Rejected.
func (r *Resolver) Resolve(schedule *model.MentorSchedule, rng model.DateRange) (*Resolution, error) {
	if !rng.Valid() {
		return nil, fmt.Errorf("%w: range %s..%s", model.ErrInvalidRequest, rng.From, rng.To)
	}

	loc, err := LoadLocation(schedule.Timezone)
	if err != nil {
		return nil, err
	}

	recurring := make(map[model.Date][]model.ResolvedInterval)
	for ri, err := range r.expander.Expand(schedule.Weekly, loc, rng) {
		if err != nil {
			return nil, fmt.Errorf("expand weekly slots: %w", err)
		}
		recurring[ri.Date] = append(recurring[ri.Date], ri)
	}

	overrides, err := groupOverrides(schedule.Overrides, loc, rng)
	if err != nil {
		return nil, err
	}

	res := &Resolution{}
	for d := rng.From; !d.After(rng.To); d = d.AddDays(1) {
		day := resolveDay(recurring[d], overrides[d], loc, d, res)
		res.Intervals = append(res.Intervals, day...)
	}

	return res, nil
}

func groupOverrides(list []model.OverrideSlot, loc *time.Location, rng model.DateRange) (map[model.Date]*dayOverrides, error) {
	grouped := make(map[model.Date]*dayOverrides)
	for _, o := range list {
		if !rng.Contains(o.Date) {
			continue
		}
		day, ok := grouped[o.Date]
		if !ok {
			day = &dayOverrides{}
			grouped[o.Date] = day
		}

		switch o.Kind {
		case model.OverrideBlock:
			start, end, err := localInterval(o.Date, o.Start, o.End, loc)
			if err != nil {
				return nil, fmt.Errorf("normalize block override %s: %w", o.ID, err)
			}
			day.blocks = append(day.blocks, interval.New(start, end))
		case model.OverrideAdd:
			day.adds = append(day.adds, o)
		default:
			return nil, fmt.Errorf("%w: unknown override kind %q", model.ErrInvalidSlot, o.Kind)
		}
	}

	for _, day := range grouped {
		sort.Slice(day.adds, func(i, j int) bool { return day.adds[i].Start < day.adds[j].Start })
	}
	return grouped, nil
}

func resolveDay(recurring []model.ResolvedInterval, ov *dayOverrides, loc *time.Location, d model.Date, res *Resolution) []model.ResolvedInterval {
	if ov == nil {
		return recurring
	}

	var present []model.ResolvedInterval
	blocks := interval.Union(ov.blocks)
	for _, ri := range recurring {
		for _, piece := range interval.SubtractAll([]interval.Interval{ri.Interval}, blocks) {
			cut := ri
			cut.Interval = piece
			present = append(present, cut)
		}
	}

	for _, add := range ov.adds {
		start, end, err := localInterval(d, add.Start, add.End, loc)
		if err != nil {
			// ADD с границей в DST gap не даёт доступности; ошибка видна ментору при сохранении
			res.Rejected = append(res.Rejected, &model.OverrideConflictError{Override: add, Cause: err})
			continue
		}
		candidate := interval.New(start, end)

		if conflict, ok := firstOverlap(present, candidate); ok {
			res.Rejected = append(res.Rejected, &model.OverrideConflictError{Override: add, Conflict: conflict})
			continue
		}

		present = append(present, model.ResolvedInterval{
			Interval: candidate,
			Source:   model.SourceOverrideAdd,
			Date:     d,
			SlotID:   add.ID,
		})
	}

	sort.Slice(present, func(i, j int) bool { return present[i].Start.Before(present[j].Start) })
	return present
}

func firstOverlap(present []model.ResolvedInterval, candidate interval.Interval) (interval.Interval, bool) {
	for _, ri := range present {
		if ri.Overlaps(candidate) {
			return ri.Interval, true
		}
	}
	return interval.Interval{}, false
}

// CheckOverrides проверяет overrides расписания на этапе редактирования:
// каждый ADD должен попасть в итоговый набор, границы всех overrides должны существовать
// в часовом поясе ментора. Возвращает первую найденную проблему.
func (r *Resolver) CheckOverrides(schedule *model.MentorSchedule) error {
	loc, err := LoadLocation(schedule.Timezone)
	if err != nil {
		return err
	}

	dates := make(map[model.Date]struct{})
	for _, o := range schedule.Overrides {
		if err := o.Validate(); err != nil {
			return err
		}
		if _, _, err := localInterval(o.Date, o.Start, o.End, loc); err != nil {
			return fmt.Errorf("override %s on %s: %w", o.ID, o.Date, err)
		}
		dates[o.Date] = struct{}{}
	}

	ordered := make([]model.Date, 0, len(dates))
	for d := range dates {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	for _, d := range ordered {
		res, err := r.Resolve(schedule, model.DateRange{From: d, To: d})
		if err != nil {
			return err
		}
		if len(res.Rejected) > 0 {
			return res.Rejected[0]
		}
	}
	return nil
}
