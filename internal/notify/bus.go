package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Bus внутрипроцессная шина событий. Каждый подписчик получает свой буферизованный канал;
// если подписчик не успевает читать, событие для него отбрасывается.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	logger *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]chan Event),
		logger: logger,
	}
}

// Subscribe возвращает канал событий и функцию отписки, которая закрывает канал
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("Subscriber is slow, event dropped",
				zap.Int("subscriber", id),
				zap.String("event", string(event.Type)),
				zap.String("booking_id", event.BookingID.String()),
			)
		}
	}
	return nil
}
