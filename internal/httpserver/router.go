// Package httpserver HTTP API сервиса: роутер chi и сервер с корректной остановкой
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/httpserver/handlers/bookings"
	"github.com/Freeeeeet/mentor_scheduler/internal/httpserver/handlers/payments"
	"github.com/Freeeeeet/mentor_scheduler/internal/httpserver/handlers/schedules"
	"github.com/Freeeeeet/mentor_scheduler/internal/httpserver/handlers/ws"
	mwLogger "github.com/Freeeeeet/mentor_scheduler/internal/httpserver/middleware/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

type Deps struct {
	Schedules schedules.ScheduleService
	Bookings  bookings.BookingService
	Payments  payments.PaymentHandler
	Hub       ws.Subscriber // nil — websocket отключён
}

// NewRouter собирает все маршруты API
func NewRouter(log *zap.Logger, deps Deps) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	router.Route("/mentors", func(r chi.Router) {
		r.Post("/", schedules.Create(log, deps.Schedules))
		r.Route("/{mentorID}", func(r chi.Router) {
			r.Get("/schedule", schedules.Get(log, deps.Schedules))
			r.Put("/weekly-slots", schedules.SetWeekly(log, deps.Schedules))
			r.Put("/overrides", schedules.SetOverrides(log, deps.Schedules))
			r.Get("/open-slots", schedules.OpenSlots(log, deps.Schedules))
			r.Get("/availability", schedules.Availability(log, deps.Schedules))
			r.Get("/bookings", bookings.ListByMentor(log, deps.Bookings))
		})
	})

	router.Route("/bookings", func(r chi.Router) {
		r.Post("/", bookings.Create(log, deps.Bookings))
		r.Get("/{id}", bookings.Get(log, deps.Bookings))
		r.Post("/{id}/confirm", bookings.Confirm(log, deps.Bookings))
		r.Post("/{id}/cancel", bookings.Cancel(log, deps.Bookings))
	})

	router.Post("/payments/events", payments.New(log, deps.Payments))

	if deps.Hub != nil {
		router.Get("/ws", ws.New(log, deps.Hub))
	}

	return router
}

type Config struct {
	Address         string
	Timeout         time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Run слушает адрес до отмены ctx, затем останавливает сервер с таймаутом ShutdownTimeout
func Run(ctx context.Context, log *zap.Logger, cfg Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("addr", cfg.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server", zap.Duration("timeout", cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	log.Info("HTTP server stopped")
	return nil
}
