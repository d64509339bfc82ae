package availability

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/model"
)

// LoadLocation загружает IANA часовой пояс ментора.
// Пустое имя и "Local" не принимаются: расписание не должно зависеть от настроек сервера.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", model.ErrInvalidTimezone, name, err)
	}
	return loc, nil
}

// LocalToUTC переводит локальные дату и время в абсолютный момент UTC.
//
// Время внутри перехода на летнее время (его не существует) отклоняется с ErrInvalidLocalTime.
// Неоднозначное время при переходе обратно разрешается в более ранний из двух моментов.
func LocalToUTC(d model.Date, c model.Clock, loc *time.Location) (time.Time, error) {
	wall := time.Date(d.Year, d.Month, d.Day, c.Hour(), c.Minute(), 0, 0, time.UTC)

	var (
		earliest time.Time
		found    bool
	)
	// Смещения пояса за сутки до и после покрывают любой переход вокруг этого времени
	for _, probe := range []time.Time{wall.Add(-24 * time.Hour), wall, wall.Add(24 * time.Hour)} {
		_, offset := probe.In(loc).Zone()
		candidate := wall.Add(-time.Duration(offset) * time.Second)
		if !sameWallClock(candidate.In(loc), wall) {
			continue
		}
		if !found || candidate.Before(earliest) {
			earliest = candidate
			found = true
		}
	}

	if !found {
		return time.Time{}, fmt.Errorf("%w: %s %s in %s", model.ErrInvalidLocalTime, d, c, loc)
	}
	return earliest.UTC(), nil
}

// localInterval нормализует пару локальных времён на дату d
func localInterval(d model.Date, start, end model.Clock, loc *time.Location) (time.Time, time.Time, error) {
	from, err := LocalToUTC(d, start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := LocalToUTC(d, end, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func sameWallClock(local, wall time.Time) bool {
	y1, m1, d1 := local.Date()
	y2, m2, d2 := wall.Date()
	return y1 == y2 && m1 == m2 && d1 == d2 &&
		local.Hour() == wall.Hour() && local.Minute() == wall.Minute()
}
