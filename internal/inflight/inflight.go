// Package inflight rejects overlapping requests for the same key.
package inflight

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrBusy = errors.New("request already in flight")

// Guard hands out one lease per key. Release must be called when the work
// ends; a lease also lapses after ttl in case the holder dies.
type Guard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

type Memory struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{held: map[string]time.Time{}, now: time.Now}
}

func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if exp, ok := m.held[key]; ok && now.Before(exp) {
		return nil, ErrBusy
	}
	exp := now.Add(ttl)
	m.held[key] = exp
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.held[key].Equal(exp) {
				delete(m.held, key)
			}
		})
	}, nil
}
