package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Удаляем ключ, только если он всё ещё принадлежит нам
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisOptions struct {
	// Время жизни ключа на случай падения процесса. Ключ не продлевается,
	// поэтому TTL должен быть больше самой долгой критической секции.
	TTL          time.Duration
	RetryDelay   time.Duration // Начальная пауза между попытками захвата
	MaxRetryWait time.Duration
}

// RedisLocker распределённая блокировка для нескольких процессов с общей БД
type RedisLocker struct {
	client *redis.Client
	opts   RedisOptions
	logger *zap.Logger
}

// NewRedisLocker подключается к Redis и проверяет соединение
func NewRedisLocker(ctx context.Context, addr string, opts RedisOptions, logger *zap.Logger) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisLockerWithClient(client, opts, logger), nil
}

func NewRedisLockerWithClient(client *redis.Client, opts RedisOptions, logger *zap.Logger) *RedisLocker {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Millisecond
	}
	if opts.MaxRetryWait <= 0 {
		opts.MaxRetryWait = 200 * time.Millisecond
	}
	return &RedisLocker{client: client, opts: opts, logger: logger}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	lockKey := fmt.Sprintf("lock:%s", key)
	token := uuid.NewString()
	delay := r.opts.RetryDelay

	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, r.opts.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > r.opts.MaxRetryWait {
			delay = r.opts.MaxRetryWait
		}
	}

	acquired := time.Now()
	var once sync.Once
	return func() {
		once.Do(func() {
			// Снимаем блокировку даже если контекст запроса уже отменён
			unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			released, err := unlockScript.Run(unlockCtx, r.client, []string{lockKey}, token).Int64()
			if err != nil {
				r.logger.Warn("Failed to release redis lock",
					zap.String("key", key),
					zap.Error(err),
				)
				return
			}
			if released == 0 {
				// Ключ истёк раньше, чем закончилась критическая секция: её мог выполнять и другой владелец
				r.logger.Warn("Redis lock expired before release",
					zap.String("key", key),
					zap.Duration("ttl", r.opts.TTL),
					zap.Duration("held", time.Since(acquired)),
				)
			}
		})
	}, nil
}

func (r *RedisLocker) Close() error {
	return r.client.Close()
}
