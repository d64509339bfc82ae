package config

import (
	"fmt"
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	LockMemory = "memory"
	LockRedis  = "redis"
)

type Config struct {
	Environment string `env:"ENV" env-default:"development"`
	HTTPServer
	Storage
	Lock
	Booking
	Telegram
}

type HTTPServer struct {
	Address         string        `env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `env:"HTTP_TIMEOUT" env-default:"4s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

type Storage struct {
	Backend           string `env:"STORAGE" env-default:"memory"`
	DBDSN             string `env:"DB_DSN"`
	MigrationsEnabled bool   `env:"MIGRATIONS_ENABLED" env-default:"true"`
}

type Lock struct {
	Backend   string        `env:"LOCK_BACKEND" env-default:"memory"`
	RedisAddr string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	TTL       time.Duration `env:"LOCK_TTL" env-default:"10s"`
}

type Booking struct {
	MaxHorizonDays            int           `env:"MAX_HORIZON_DAYS" env-default:"60"`
	DefaultMinBookableMinutes int           `env:"DEFAULT_MIN_BOOKABLE_MINUTES" env-default:"30"`
	PendingExpiry             time.Duration `env:"PENDING_EXPIRY" env-default:"15m"`
	SweepSchedule             string        `env:"SWEEP_SCHEDULE" env-default:"@every 1m"`
	AvailabilityCacheSize     int           `env:"AVAILABILITY_CACHE_SIZE" env-default:"1024"`
}

// Telegram уведомления операторам. Пустой токен отключает отправку.
type Telegram struct {
	Token  string `env:"TELEGRAM_TOKEN"`
	ChatID int64  `env:"TELEGRAM_CHAT_ID"`
}

// Load читает .env (если он есть) и переменные окружения
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required when STORAGE=%s", StoragePostgres)
		}
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage.Backend)
	}

	switch c.Lock.Backend {
	case LockMemory, LockRedis:
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.Lock.Backend)
	}

	if c.MaxHorizonDays <= 0 {
		return fmt.Errorf("MAX_HORIZON_DAYS must be positive, got %d", c.MaxHorizonDays)
	}
	if c.DefaultMinBookableMinutes <= 0 {
		return fmt.Errorf("DEFAULT_MIN_BOOKABLE_MINUTES must be positive, got %d", c.DefaultMinBookableMinutes)
	}
	if c.PendingExpiry <= 0 {
		return fmt.Errorf("PENDING_EXPIRY must be positive, got %s", c.PendingExpiry)
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}

	return nil
}
