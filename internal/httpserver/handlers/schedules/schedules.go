// Package schedules HTTP обработчики расписаний менторов и свободного времени
package schedules

import (
	"context"
	"net/http"

	"github.com/Freeeeeet/mentor_scheduler/internal/httpserver/response"
	"github.com/Freeeeeet/mentor_scheduler/internal/interval"
	"github.com/Freeeeeet/mentor_scheduler/internal/model"
	"github.com/Freeeeeet/mentor_scheduler/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

type ScheduleService interface {
	CreateSchedule(ctx context.Context, in service.CreateScheduleInput) (*model.MentorSchedule, error)
	GetSchedule(ctx context.Context, mentorID string) (*model.MentorSchedule, error)
	SetWeeklySlots(ctx context.Context, mentorID string, slots []model.WeeklySlot) (*model.MentorSchedule, error)
	SetOverrideSlots(ctx context.Context, mentorID string, overrides []model.OverrideSlot) (*model.MentorSchedule, error)
	GetOpenSlots(ctx context.Context, mentorID string, from, to model.Date) ([]interval.Interval, error)
	GetAvailability(ctx context.Context, mentorID string, from, to model.Date) ([]model.ResolvedInterval, error)
}

type CreateRequest struct {
	MentorID           string               `json:"mentor_id"`
	Timezone           string               `json:"timezone"`
	MinBookableMinutes int                  `json:"min_bookable_minutes,omitempty"`
	WeeklySlots        []model.WeeklySlot   `json:"weekly_slots"`
	Overrides          []model.OverrideSlot `json:"overrides"`
}

type WeeklySlotsRequest struct {
	WeeklySlots []model.WeeklySlot `json:"weekly_slots"`
}

type OverridesRequest struct {
	Overrides []model.OverrideSlot `json:"overrides"`
}

type OpenSlotsResponse struct {
	MentorID string              `json:"mentor_id"`
	From     model.Date          `json:"from"`
	To       model.Date          `json:"to"`
	Slots    []interval.Interval `json:"slots"`
}

type AvailabilityResponse struct {
	MentorID  string                   `json:"mentor_id"`
	From      model.Date               `json:"from"`
	To        model.Date               `json:"to"`
	Intervals []model.ResolvedInterval `json:"intervals"`
}

func requestLogger(log *zap.Logger, op string, r *http.Request) *zap.Logger {
	return log.With(
		zap.String("op", op),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Create POST /mentors
func Create(log *zap.Logger, svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(log, "handlers.schedules.Create", r)

		var req CreateRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Warn("Failed to decode request body", zap.Error(err))
			response.BadRequest(w, r, "failed to decode request: "+err.Error())
			return
		}

		schedule, err := svc.CreateSchedule(r.Context(), service.CreateScheduleInput{
			MentorID:           req.MentorID,
			Timezone:           req.Timezone,
			MinBookableMinutes: req.MinBookableMinutes,
			Weekly:             req.WeeklySlots,
			Overrides:          req.Overrides,
		})
		if err != nil {
			log.Info("Failed to create schedule", zap.Error(err))
			response.WriteError(w, r, err)
			return
		}

		response.JSON(w, r, http.StatusCreated, schedule)
	}
}

// Get GET /mentors/{mentorID}/schedule
func Get(log *zap.Logger, svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(log, "handlers.schedules.Get", r)

		schedule, err := svc.GetSchedule(r.Context(), chi.URLParam(r, "mentorID"))
		if err != nil {
			log.Info("Failed to get schedule", zap.Error(err))
			response.WriteError(w, r, err)
			return
		}

		response.JSON(w, r, http.StatusOK, schedule)
	}
}

// SetWeekly PUT /mentors/{mentorID}/weekly-slots
func SetWeekly(log *zap.Logger, svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(log, "handlers.schedules.SetWeekly", r)

		var req WeeklySlotsRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Warn("Failed to decode request body", zap.Error(err))
			response.BadRequest(w, r, "failed to decode request: "+err.Error())
			return
		}

		schedule, err := svc.SetWeeklySlots(r.Context(), chi.URLParam(r, "mentorID"), req.WeeklySlots)
		if err != nil {
			log.Info("Failed to set weekly slots", zap.Error(err))
			response.WriteError(w, r, err)
			return
		}

		response.JSON(w, r, http.StatusOK, schedule)
	}
}

// SetOverrides PUT /mentors/{mentorID}/overrides
func SetOverrides(log *zap.Logger, svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(log, "handlers.schedules.SetOverrides", r)

		var req OverridesRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Warn("Failed to decode request body", zap.Error(err))
			response.BadRequest(w, r, "failed to decode request: "+err.Error())
			return
		}

		schedule, err := svc.SetOverrideSlots(r.Context(), chi.URLParam(r, "mentorID"), req.Overrides)
		if err != nil {
			log.Info("Failed to set overrides", zap.Error(err))
			response.WriteError(w, r, err)
			return
		}

		response.JSON(w, r, http.StatusOK, schedule)
	}
}

// parseRange читает from и to из query. При ошибке ответ уже записан.
func parseRange(w http.ResponseWriter, r *http.Request) (model.Date, model.Date, bool) {
	from, err := model.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		response.BadRequest(w, r, "query parameter from must be YYYY-MM-DD")
		return model.Date{}, model.Date{}, false
	}
	to, err := model.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		response.BadRequest(w, r, "query parameter to must be YYYY-MM-DD")
		return model.Date{}, model.Date{}, false
	}
	return from, to, true
}

// OpenSlots GET /mentors/{mentorID}/open-slots?from=YYYY-MM-DD&to=YYYY-MM-DD
func OpenSlots(log *zap.Logger, svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(log, "handlers.schedules.OpenSlots", r)

		from, to, ok := parseRange(w, r)
		if !ok {
			return
		}

		mentorID := chi.URLParam(r, "mentorID")
		slots, err := svc.GetOpenSlots(r.Context(), mentorID, from, to)
		if err != nil {
			log.Info("Failed to get open slots", zap.Error(err))
			response.WriteError(w, r, err)
			return
		}

		if slots == nil {
			slots = []interval.Interval{}
		}
		response.JSON(w, r, http.StatusOK, OpenSlotsResponse{
			MentorID: mentorID,
			From:     from,
			To:       to,
			Slots:    slots,
		})
	}
}

// Availability GET /mentors/{mentorID}/availability?from=YYYY-MM-DD&to=YYYY-MM-DD
// Доступность по расписанию с источником каждого интервала, бронирования не вычитаются.
func Availability(log *zap.Logger, svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(log, "handlers.schedules.Availability", r)

		from, to, ok := parseRange(w, r)
		if !ok {
			return
		}

		mentorID := chi.URLParam(r, "mentorID")
		intervals, err := svc.GetAvailability(r.Context(), mentorID, from, to)
		if err != nil {
			log.Info("Failed to get availability", zap.Error(err))
			response.WriteError(w, r, err)
			return
		}

		if intervals == nil {
			intervals = []model.ResolvedInterval{}
		}
		response.JSON(w, r, http.StatusOK, AvailabilityResponse{
			MentorID:  mentorID,
			From:      from,
			To:        to,
			Intervals: intervals,
		})
	}
}
