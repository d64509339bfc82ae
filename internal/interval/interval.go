package interval

import (
	"fmt"
	"sort"
	"time"
)

// Interval полуоткрытый интервал [Start, End) в UTC
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New создаёт интервал, приводя границы к UTC
func New(start, end time.Time) Interval {
	return Interval{Start: start.UTC(), End: end.UTC()}
}

// Duration возвращает длительность интервала
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// IsEmpty сообщает, что интервал не содержит ни одного момента
func (i Interval) IsEmpty() bool {
	return !i.End.After(i.Start)
}

// Overlaps проверяет пересечение двух интервалов. Соприкасающиеся интервалы не пересекаются.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Contains проверяет, что other целиком лежит внутри i
func (i Interval) Contains(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

// Subtract вычитает other из i. Результат содержит 0, 1 или 2 интервала.
func (i Interval) Subtract(other Interval) []Interval {
	if !i.Overlaps(other) {
		return []Interval{i}
	}

	var result []Interval
	if i.Start.Before(other.Start) {
		result = append(result, Interval{Start: i.Start, End: other.Start})
	}
	if other.End.Before(i.End) {
		result = append(result, Interval{Start: other.End, End: i.End})
	}
	return result
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.UTC().Format(time.RFC3339), i.End.UTC().Format(time.RFC3339))
}

// Sort сортирует интервалы по началу, затем по концу
func Sort(list []Interval) {
	sort.Slice(list, func(a, b int) bool {
		if list[a].Start.Equal(list[b].Start) {
			return list[a].End.Before(list[b].End)
		}
		return list[a].Start.Before(list[b].Start)
	})
}

// Union объединяет пересекающиеся и соприкасающиеся интервалы.
// Возвращает новый отсортированный срез, входной срез не изменяется.
func Union(list []Interval) []Interval {
	if len(list) == 0 {
		return nil
	}

	sorted := make([]Interval, 0, len(list))
	for _, iv := range list {
		if !iv.IsEmpty() {
			sorted = append(sorted, iv)
		}
	}
	Sort(sorted)

	var merged []Interval
	for _, iv := range sorted {
		last := len(merged) - 1
		if last >= 0 && !iv.Start.After(merged[last].End) {
			if iv.End.After(merged[last].End) {
				merged[last].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// SubtractAll вычитает каждый интервал из cut из каждого интервала base
func SubtractAll(base, cut []Interval) []Interval {
	remaining := make([]Interval, 0, len(base))
	remaining = append(remaining, base...)

	for _, c := range Union(cut) {
		next := remaining[:0:0]
		for _, iv := range remaining {
			next = append(next, iv.Subtract(c)...)
		}
		remaining = next
	}

	Sort(remaining)
	return remaining
}

// AnyOverlaps проверяет, пересекается ли candidate хотя бы с одним интервалом из list
func AnyOverlaps(list []Interval, candidate Interval) bool {
	for _, iv := range list {
		if iv.Overlaps(candidate) {
			return true
		}
	}
	return false
}

// AnyContains проверяет, что candidate целиком лежит внутри одного из интервалов list
func AnyContains(list []Interval, candidate Interval) bool {
	for _, iv := range list {
		if iv.Contains(candidate) {
			return true
		}
	}
	return false
}
