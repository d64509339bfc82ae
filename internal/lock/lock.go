package lock

import (
	"context"
	"sync"
)

// Unlock освобождает захваченную блокировку. Повторный вызов ничего не делает.
type Unlock func()

// Locker критическая секция, привязанная к ключу. Захваты разных ключей друг друга не блокируют.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// MentorKey ключ критической секции для бронирований одного ментора
func MentorKey(mentorID string) string {
	return "mentor:" + mentorID
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex внутрипроцессная блокировка по ключу.
// Ожидание прерывается отменой контекста; записи удаляются, когда их никто не держит и не ждёт.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyedEntry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (Unlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			k.release(key, e)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// size количество ключей, которые сейчас держат или ждут
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
