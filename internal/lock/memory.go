package lock

import (
	"context"
	"fmt"
	"sync"

	"sheetvend-api/internal/errs"
)

// Memory is an in-process Locker. It serializes callers of one process only.
type Memory struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewMemory creates an in-process locker.
func NewMemory() *Memory {
	return &Memory{slots: make(map[string]chan struct{})}
}

func (m *Memory) slot(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		m.slots[key] = ch
	}
	return ch
}

// Acquire takes the lock for key.
func (m *Memory) Acquire(ctx context.Context, key string) (Release, error) {
	ch := m.slot(key)

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrLockTimeout, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}

// Ensure Memory implements Locker
var _ Locker = (*Memory)(nil)
