package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ExpirySweeper отменяет неоплаченные бронирования с истёкшим сроком
type ExpirySweeper interface {
	ExpirePending(ctx context.Context) (int, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	sweeper ExpirySweeper
	spec    string
	logger  *zap.Logger

	mu      sync.Mutex // Запуски задачи не перекрываются
	running bool
}

// NewScheduler создаёт новый планировщик. spec — расписание в формате cron ("@every 1m").
func NewScheduler(sweeper ExpirySweeper, spec string, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		sweeper: sweeper,
		spec:    spec,
		logger:  logger,
	}
}

// Run запускает фоновые задачи и блокируется до отмены ctx
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting background scheduler", zap.String("sweep_schedule", s.spec))

	c := cron.New(cron.WithChain(cron.Recover(cronLogger{s.logger})))
	if _, err := c.AddFunc(s.spec, func() { s.expireBookings(ctx) }); err != nil {
		return fmt.Errorf("schedule expiry sweep: %w", err)
	}

	// Первый запуск сразу при старте
	s.expireBookings(ctx)

	c.Start()
	<-ctx.Done()

	s.logger.Info("Stopping background scheduler")
	<-c.Stop().Done()
	return nil
}

// expireBookings отменяет просроченные бронирования.
// Ошибки только логируются: задача повторится на следующем тике.
func (s *Scheduler) expireBookings(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Debug("Expiry sweep still running, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	expired, err := s.sweeper.ExpirePending(ctx)
	if err != nil {
		s.logger.Error("Failed to expire pending bookings", zap.Error(err), zap.Int("expired", expired))
		return
	}
	if expired > 0 {
		s.logger.Info("Pending bookings expired", zap.Int("count", expired))
	}
}

// cronLogger адаптирует zap к cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
