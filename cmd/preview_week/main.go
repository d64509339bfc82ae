package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/availability"
	"github.com/Freeeeeet/mentor_scheduler/internal/model"
	"github.com/google/uuid"
)

// Печатает неделю доступности тестового расписания: удобно проверять DST и overrides глазами
func main() {
	tz := flag.String("tz", "Europe/Moscow", "IANA timezone of the mentor")
	from := flag.String("from", "", "first day, YYYY-MM-DD (default: monday of the current week)")
	days := flag.Int("days", 7, "number of days to show")
	flag.Parse()

	loc, err := availability.LoadLocation(*tz)
	if err != nil {
		fmt.Printf("Ошибка: %v\n", err)
		os.Exit(1)
	}

	start := mondayOf(model.DateOf(time.Now().In(loc)))
	if *from != "" {
		if start, err = model.ParseDate(*from); err != nil {
			fmt.Printf("Ошибка: %v\n", err)
			os.Exit(1)
		}
	}
	rng := model.DateRange{From: start, To: start.AddDays(*days - 1)}

	// Тестовое расписание: будни утром, понедельник и четверг вечером
	schedule := &model.MentorSchedule{
		MentorID:           "preview",
		Timezone:           *tz,
		MinBookableMinutes: 30,
		Weekly: []model.WeeklySlot{
			slot(model.Monday, "09:00", "12:00"),
			slot(model.Monday, "18:00", "21:00"),
			slot(model.Tuesday, "09:00", "12:00"),
			slot(model.Wednesday, "09:00", "12:00"),
			slot(model.Thursday, "18:00", "21:00"),
			slot(model.Friday, "09:00", "11:00"),
		},
		Overrides: []model.OverrideSlot{
			{ID: uuid.New(), Kind: model.OverrideBlock, Date: start.AddDays(1), Start: model.MustClock("10:00"), End: model.MustClock("11:00")},
			{ID: uuid.New(), Kind: model.OverrideAdd, Date: start.AddDays(5), Start: model.MustClock("12:00"), End: model.MustClock("14:00")},
		},
	}

	res, err := availability.NewResolver(availability.NewExpander()).Resolve(schedule, rng)
	if err != nil {
		fmt.Printf("Ошибка: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("📅 Период: %s - %s (%s)\n\n", rng.From, rng.To, loc)
	for _, iv := range res.Intervals {
		fmt.Printf("%-10s %s  %s-%s  (%s)  %s\n",
			iv.Date.Weekday(),
			iv.Date,
			iv.Start.In(loc).Format("15:04"),
			iv.End.In(loc).Format("15:04"),
			iv.Interval,
			iv.Source,
		)
	}
	for _, rejected := range res.Rejected {
		fmt.Printf("⚠️  %v\n", rejected)
	}
	fmt.Printf("\n📊 Интервалов: %d\n", len(res.Intervals))
}

func slot(wd model.Weekday, start, end string) model.WeeklySlot {
	return model.WeeklySlot{ID: uuid.New(), Weekday: wd, Start: model.MustClock(start), End: model.MustClock(end)}
}

func mondayOf(d model.Date) model.Date {
	return d.AddDays(-(int(d.Weekday()) - 1))
}
