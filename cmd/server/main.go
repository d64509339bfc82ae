package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/mentor_scheduler/internal/app"
	"github.com/Freeeeeet/mentor_scheduler/internal/availability"
	"github.com/Freeeeeet/mentor_scheduler/internal/config"
	"github.com/Freeeeeet/mentor_scheduler/internal/httpserver"
	"github.com/Freeeeeet/mentor_scheduler/internal/lock"
	"github.com/Freeeeeet/mentor_scheduler/internal/notify"
	"github.com/Freeeeeet/mentor_scheduler/internal/repository"
	"github.com/Freeeeeet/mentor_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/mentor_scheduler/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type storage struct {
	schedules service.ScheduleRepository
	bookings  service.BookingRepository
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Service stopped with error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Shutdown finished")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting mentor scheduler",
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("lock", cfg.Lock.Backend),
	)

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	locker, closeLocker, err := openLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	hub := notify.NewHub(logger)
	publishers := notify.Multi{hub}

	if cfg.Telegram.Token != "" {
		tgBot, err := notify.NewTelegramBot(cfg.Telegram.Token)
		if err != nil {
			return err
		}
		publishers = append(publishers, notify.NewTelegram(tgBot, cfg.Telegram.ChatID, nil, logger))
		logger.Info("Telegram notifications enabled", zap.Int64("chat_id", cfg.Telegram.ChatID))
	}

	resolver := availability.NewResolver(availability.NewExpander())
	intervals, err := availability.NewStore(store.schedules, store.bookings, resolver, availability.StoreConfig{
		HorizonDays: cfg.MaxHorizonDays,
		CacheSize:   cfg.AvailabilityCacheSize,
	}, logger)
	if err != nil {
		return err
	}

	availabilityService := service.NewAvailabilityService(store.schedules, intervals, resolver, locker, cfg.DefaultMinBookableMinutes, logger)
	bookingService := service.NewBookingService(store.bookings, intervals, locker, publishers, service.BookingConfig{
		PendingExpiry: cfg.PendingExpiry,
	}, logger)

	router := httpserver.NewRouter(logger, httpserver.Deps{
		Schedules: availabilityService,
		Bookings:  bookingService,
		Payments:  bookingService,
		Hub:       hub,
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		return app.NewScheduler(bookingService, cfg.SweepSchedule, logger).Run(ctx)
	})

	g.Go(func() error {
		return httpserver.Run(ctx, logger, httpserver.Config{
			Address:         cfg.HTTPServer.Address,
			Timeout:         cfg.HTTPServer.Timeout,
			IdleTimeout:     cfg.HTTPServer.IdleTimeout,
			ShutdownTimeout: cfg.HTTPServer.ShutdownTimeout,
		}, router)
	})

	return g.Wait()
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	if cfg.Storage.Backend == config.StorageMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return &storage{
			schedules: memory.NewScheduleRepository(),
			bookings:  memory.NewBookingRepository(),
			close:     func() {},
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.MigrationsEnabled {
		if err := migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &storage{
		schedules: repository.NewScheduleRepository(pool, logger),
		bookings:  repository.NewBookingRepository(pool, logger),
		close:     pool.Close,
	}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	migrator, err := app.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Run(ctx)
}

func openLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (lock.Locker, func(), error) {
	if cfg.Lock.Backend == config.LockMemory {
		return lock.NewKeyedMutex(), func() {}, nil
	}

	locker, err := lock.NewRedisLocker(ctx, cfg.RedisAddr, lock.RedisOptions{TTL: cfg.Lock.TTL}, logger)
	if err != nil {
		return nil, nil, err
	}

	return locker, func() {
		if err := locker.Close(); err != nil {
			logger.Warn("Failed to close redis locker", zap.Error(err))
		}
	}, nil
}
