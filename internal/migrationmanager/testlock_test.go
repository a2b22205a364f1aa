package migrationmanager_test

import (
	"context"
	"sync"
	"time"
)

// inprocessLock is a single-process stand-in for migrationlock.Provider,
// sufficient for exercising the manager's lock discipline without a real
// Redis instance.
type inprocessLock struct {
	mu sync.Mutex
}

func (l *inprocessLock) TryUsing(ctx context.Context, key string, acquireTimeout, leaseTimeout time.Duration, work func(ctx context.Context) error) (bool, error) {
	acquired := l.mu.TryLock()
	if !acquired {
		return false, nil
	}
	defer l.mu.Unlock()
	return true, work(ctx)
}
