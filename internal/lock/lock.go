package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrLockHeld is returned by Acquire when another owner holds the key.
var ErrLockHeld = errors.New("lock is held by another owner")

// Release gives the lock back. Releasing after the TTL expired is a no-op.
type Release func(ctx context.Context) error

// Locker grants short-lived exclusive ownership of a key. The job engine takes one per
// job around each step so at most one step of a job is in flight.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

type localEntry struct {
	token   string
	expires time.Time
}

// LocalLocker is an in-process Locker for single-node deployments and tests.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localEntry
	clock func() time.Time
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localEntry), clock: time.Now}
}

// Acquire takes key for ttl or returns ErrLockHeld.
func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return nil, ErrLockHeld
	}
	token := uuid.NewString()
	l.held[key] = localEntry{token: token, expires: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, ok := l.held[key]; ok && e.token == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}
