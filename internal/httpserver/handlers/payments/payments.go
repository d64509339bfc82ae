// Package payments принимает события платёжного провайдера
package payments

import (
	"context"
	"net/http"

	"github.com/Freeeeeet/mentor_scheduler/internal/httpserver/response"
	"github.com/Freeeeeet/mentor_scheduler/internal/model"
	"github.com/Freeeeeet/mentor_scheduler/internal/service"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PaymentHandler interface {
	HandlePaymentEvent(ctx context.Context, event service.PaymentEvent) (*model.Booking, error)
}

type EventRequest struct {
	BookingID uuid.UUID              `json:"booking_id"`
	Outcome   service.PaymentOutcome `json:"outcome"`
}

// New POST /payments/events
func New(log *zap.Logger, handler PaymentHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := log.With(
			zap.String("op", "handlers.payments.New"),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req EventRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Warn("Failed to decode payment event", zap.Error(err))
			response.BadRequest(w, r, "failed to decode request: "+err.Error())
			return
		}
		if req.BookingID == uuid.Nil {
			response.BadRequest(w, r, "booking_id is required")
			return
		}

		booking, err := handler.HandlePaymentEvent(r.Context(), service.PaymentEvent{
			BookingID: req.BookingID,
			Outcome:   req.Outcome,
		})
		if err != nil {
			log.Info("Payment event rejected",
				zap.String("booking_id", req.BookingID.String()),
				zap.String("outcome", string(req.Outcome)),
				zap.Error(err),
			)
			response.WriteError(w, r, err)
			return
		}

		log.Info("Payment event applied",
			zap.String("booking_id", booking.ID.String()),
			zap.String("status", string(booking.Status)),
		)
		response.JSON(w, r, http.StatusOK, booking)
	}
}
