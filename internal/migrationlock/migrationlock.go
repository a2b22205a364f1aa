// Package migrationlock implements the distributed lock provider the
// migration manager uses to serialise runMigrationsAsync across processes.
//
// It uses a naive "single instance" Redis distributed locking algorithm as
// described in https://redis.io/docs/latest/develop/use/patterns/distributed-locks/
// — a plain SET NX PX acquire and a Lua compare-and-delete release. This has
// known edge cases where two nodes can both believe they hold the lock under
// extreme clock or scheduling skew (see the Redis documentation). That is
// acceptable here: the migration manager re-checks "already completed" state
// after acquiring the lock (see migrationmanager.Manager.RunMigrationsAsync),
// so a race at most causes one migration to be attempted twice, not twice
// applied. Do NOT reuse this package for locking where duplicate execution
// would corrupt data; use Redlock or a proper fencing scheme instead.
package migrationlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sigilindex/migrator/internal/redis"
)

// Provider is the lock-provider contract from §6 of the specification:
// acquire a named lock, run work while holding it, release it. It returns
// whether the lock was acquired; if not, work is never invoked.
type Provider interface {
	TryUsing(ctx context.Context, key string, acquireTimeout, leaseTimeout time.Duration, work func(ctx context.Context) error) (acquired bool, err error)
}

type redisProvider struct {
	client redis.Cmdable
}

// New creates a Redis-backed lock Provider.
func New(client redis.Cmdable) Provider {
	return &redisProvider{client: client}
}

// TryUsing polls for the lock every pollInterval until it is acquired or
// acquireTimeout elapses. Once acquired, work runs under a context bounded by
// leaseTimeout — the lock is released (best-effort) when work returns,
// regardless of whether the lease expired first. Exceeding the lease is an
// operator problem: TryUsing does not preempt work, it only bounds the
// context passed to it.
func (p *redisProvider) TryUsing(ctx context.Context, key string, acquireTimeout, leaseTimeout time.Duration, work func(ctx context.Context) error) (bool, error) {
	value := generateRandomValue()

	acquireCtx, cancelAcquire := context.WithTimeout(ctx, acquireTimeout)
	defer cancelAcquire()

	acquired, err := p.acquire(acquireCtx, key, value, leaseTimeout)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}
	if !acquired {
		return false, nil
	}
	defer p.release(ctx, key, value)

	leaseCtx, cancelLease := context.WithTimeout(ctx, leaseTimeout)
	defer cancelLease()

	if err := work(leaseCtx); err != nil {
		return true, err
	}
	return true, nil
}

const pollInterval = 200 * time.Millisecond

func (p *redisProvider) acquire(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	for {
		ok, err := p.attemptLock(ctx, key, value, ttl)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, nil
		case <-time.After(pollInterval):
		}
	}
}

// attemptLock performs a single SET NX PX acquire attempt.
func (p *redisProvider) attemptLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	result := p.client.SetNX(ctx, key, value, ttl)
	if result.Err() != nil {
		return false, result.Err()
	}
	return result.Val(), nil
}

// release deletes the key only if it still holds our value, so a lock we
// lost to TTL expiry (and another process subsequently acquired) is never
// torn down out from under its new owner.
func (p *redisProvider) release(ctx context.Context, key, value string) {
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	p.client.Eval(ctx, script, []string{key}, value)
}

func generateRandomValue() string {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err == nil {
		return hex.EncodeToString(b)
	}

	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	return fmt.Sprintf("%d-%s-%d", time.Now().UnixNano(), hostname, os.Getpid())
}
