package engine

import (
	"context"
	"sync"
	"time"
)

// userLocks serializes trade execution per user. Each user gets a
// one-slot channel used as a mutex, so acquisition can race a timer:
// a plain sync.Mutex cannot give up after a bounded wait.
//
// Lock entries are never removed; the set of users is bounded by the
// account table and each entry is one channel.
type userLocks struct {
	mu sync.Mutex
	m  map[string]chan struct{}
}

func newUserLocks() *userLocks {
	return &userLocks{m: make(map[string]chan struct{})}
}

func (l *userLocks) slot(userID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.m[userID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.m[userID] = ch
	}
	return ch
}

// acquire takes the user's lock, waiting at most timeout. It returns
// the release func, ErrBusy on timeout, or ctx.Err() on cancellation.
func (l *userLocks) acquire(ctx context.Context, userID string, timeout time.Duration) (func(), error) {
	ch := l.slot(userID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-timer.C:
		return nil, ErrBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
