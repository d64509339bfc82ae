package availability

import (
	"iter"
	"sort"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/interval"
	"github.com/Freeeeeet/mentor_scheduler/internal/model"
)

// Expander разворачивает недельные слоты в конкретные интервалы на диапазоне дат
type Expander struct{}

func NewExpander() *Expander {
	return &Expander{}
}

// Expand возвращает ленивую последовательность интервалов: по одному на каждую пару
// (недельный слот, дата с тем же днём недели) внутри rng. Последовательность конечна
// и может обходиться повторно. Ошибка нормализации выдаётся вместе с пустым интервалом,
// после неё обход прекращается.
func (e *Expander) Expand(slots []model.WeeklySlot, loc *time.Location, rng model.DateRange) iter.Seq2[model.ResolvedInterval, error] {
	byWeekday := make(map[model.Weekday][]model.WeeklySlot, 7)
	for _, slot := range slots {
		byWeekday[slot.Weekday] = append(byWeekday[slot.Weekday], slot)
	}
	for wd := range byWeekday {
		daySlots := byWeekday[wd]
		sort.Slice(daySlots, func(i, j int) bool { return daySlots[i].Start < daySlots[j].Start })
	}

	return func(yield func(model.ResolvedInterval, error) bool) {
		if !rng.Valid() {
			return
		}
		for d := rng.From; !d.After(rng.To); d = d.AddDays(1) {
			for _, slot := range byWeekday[d.Weekday()] {
				start, end, err := localInterval(d, slot.Start, slot.End, loc)
				if err != nil {
					yield(model.ResolvedInterval{}, err)
					return
				}
				ri := model.ResolvedInterval{
					Interval: interval.New(start, end),
					Source:   model.SourceRecurring,
					Date:     d,
					SlotID:   slot.ID,
				}
				if !yield(ri, nil) {
					return
				}
			}
		}
	}
}
