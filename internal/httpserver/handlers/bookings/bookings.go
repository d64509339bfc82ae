// Package bookings HTTP обработчики бронирований
package bookings

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/httpserver/response"
	"github.com/Freeeeeet/mentor_scheduler/internal/interval"
	"github.com/Freeeeeet/mentor_scheduler/internal/model"
	"github.com/Freeeeeet/mentor_scheduler/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingService interface {
	RequestBooking(ctx context.Context, req service.BookingRequest) (*model.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	ListMentorBookings(ctx context.Context, mentorID string) ([]*model.Booking, error)
	Confirm(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID) (*model.Booking, error)
}

// LocalRequest время в локальном поясе; пустой timezone — пояс ментора
type LocalRequest struct {
	Date     model.Date  `json:"date"`
	Start    model.Clock `json:"start"`
	End      model.Clock `json:"end"`
	Timezone string      `json:"timezone,omitempty"`
}

// CreateRequest тело POST /bookings: либо start/end в RFC 3339, либо local
type CreateRequest struct {
	MentorID    string        `json:"mentor_id"`
	RequesterID string        `json:"requester_id"`
	Start       *time.Time    `json:"start,omitempty"`
	End         *time.Time    `json:"end,omitempty"`
	Local       *LocalRequest `json:"local,omitempty"`
}

func (req CreateRequest) toService() (service.BookingRequest, string) {
	out := service.BookingRequest{MentorID: req.MentorID, RequesterID: req.RequesterID}

	switch {
	case req.Local != nil && (req.Start != nil || req.End != nil):
		return out, "either start/end or local must be set, not both"
	case req.Local != nil:
		out.Local = &service.LocalTime{
			Date:     req.Local.Date,
			Start:    req.Local.Start,
			End:      req.Local.End,
			Timezone: req.Local.Timezone,
		}
	case req.Start != nil && req.End != nil:
		out.Interval = interval.New(*req.Start, *req.End)
	default:
		return out, "start and end are required"
	}
	return out, ""
}

func requestLogger(log *zap.Logger, op string, r *http.Request) *zap.Logger {
	return log.With(
		zap.String("op", op),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Create POST /bookings
func Create(log *zap.Logger, svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(log, "handlers.bookings.Create", r)

		var req CreateRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Warn("Failed to decode request body", zap.Error(err))
			response.BadRequest(w, r, "failed to decode request: "+err.Error())
			return
		}

		bookingReq, problem := req.toService()
		if problem != "" {
			response.BadRequest(w, r, problem)
			return
		}

		booking, err := svc.RequestBooking(r.Context(), bookingReq)
		if err != nil {
			log.Info("Failed to create booking", zap.Error(err))
			response.WriteError(w, r, err)
			return
		}

		response.JSON(w, r, http.StatusCreated, booking)
	}
}

// Get GET /bookings/{id}
func Get(log *zap.Logger, svc BookingService) http.HandlerFunc {
	return withID(log, "handlers.bookings.Get", svc.GetBooking)
}

// Confirm POST /bookings/{id}/confirm
func Confirm(log *zap.Logger, svc BookingService) http.HandlerFunc {
	return withID(log, "handlers.bookings.Confirm", svc.Confirm)
}

// Cancel POST /bookings/{id}/cancel
func Cancel(log *zap.Logger, svc BookingService) http.HandlerFunc {
	return withID(log, "handlers.bookings.Cancel", svc.Cancel)
}

// ListByMentor GET /mentors/{mentorID}/bookings
func ListByMentor(log *zap.Logger, svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(log, "handlers.bookings.ListByMentor", r)

		list, err := svc.ListMentorBookings(r.Context(), chi.URLParam(r, "mentorID"))
		if err != nil {
			log.Error("Failed to list bookings", zap.Error(err))
			response.WriteError(w, r, err)
			return
		}

		if list == nil {
			list = []*model.Booking{}
		}
		response.JSON(w, r, http.StatusOK, list)
	}
}

func withID(log *zap.Logger, op string, call func(ctx context.Context, id uuid.UUID) (*model.Booking, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(log, op, r)

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			response.BadRequest(w, r, "invalid booking id")
			return
		}

		booking, err := call(r.Context(), id)
		if err != nil {
			log.Info("Booking request failed", zap.String("booking_id", id.String()), zap.Error(err))
			response.WriteError(w, r, err)
			return
		}

		response.JSON(w, r, http.StatusOK, booking)
	}
}
