package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("date lock not acquired")

// Locker serialises bookings per calendar date. Every slot kind on a date
// shares one lock because a full day and a half day on the same date conflict.
type Locker interface {
	WithDateLock(ctx context.Context, date civil.Date, fn func(ctx context.Context) error) error
}

// DateLocker is a Redis SET NX lock with an owner token, so an expired holder
// can never delete a lock that has since been taken by someone else.
type DateLocker struct {
	client   *redis.Client
	ttl      time.Duration
	wait     time.Duration
	interval time.Duration
}

type LockOption func(*DateLocker)

// WithWait makes a contended acquire poll every interval for up to wait
// before giving up. The default is to fail immediately.
func WithWait(wait, interval time.Duration) LockOption {
	return func(l *DateLocker) {
		l.wait = wait
		if interval > 0 {
			l.interval = interval
		}
	}
}

func NewRedisDateLocker(client *redis.Client, ttl time.Duration, opts ...LockOption) *DateLocker {
	l := &DateLocker{client: client, ttl: ttl, interval: 25 * time.Millisecond}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func lockKey(date civil.Date) string {
	return "lock:date:" + date.String()
}

// WithDateLock runs fn while holding the lock for date. fn gets a context
// that ends when the lock TTL runs out.
func (l *DateLocker) WithDateLock(ctx context.Context, date civil.Date, fn func(ctx context.Context) error) error {
	key := lockKey(date)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}
	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	held, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()
	return fn(held)
}

func (l *DateLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire date lock: %w", err)
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrLockNotAcquired
		}

		t := time.NewTimer(l.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// compare-and-delete on the owner token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *DateLocker) release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release date lock: %w", err)
	}
	return nil
}
