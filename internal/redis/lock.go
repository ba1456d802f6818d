package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
)

// DoctorDayKey is the lock key serialising bookings of one doctor on one date.
func DoctorDayKey(doctorID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("lock:doctor:%s:%s", doctorID, date.Format("2006-01-02"))
}

type LockOptions struct {
	TTL time.Duration
	// Wait bounds how long WithLock polls a held key before giving up.
	// The caller's ctx deadline still applies when it is sooner.
	Wait       time.Duration
	RetryDelay time.Duration
}

// RedisLocker guards critical sections with a SET NX key holding a random
// token. Release only deletes the key if it still holds our token, so a
// holder whose TTL ran out cannot free someone else's lock.
type RedisLocker struct {
	client *redis.Client
	opts   LockOptions
}

func NewRedisLocker(client *redis.Client, opts LockOptions) *RedisLocker {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Second
	}
	if opts.Wait < 0 {
		opts.Wait = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 50 * time.Millisecond
	}
	return &RedisLocker{client: client, opts: opts}
}

// WithLock runs fn while holding key. fn's context expires with the lock TTL.
// If the key stays held for longer than Wait it returns ErrLockNotAcquired.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// release even if ctx was canceled while fn ran
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = l.release(relCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.opts.TTL)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.opts.Wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return nil
		}

		left := time.Until(deadline)
		if left <= 0 {
			return ErrLockNotAcquired
		}
		delay := min(l.opts.RetryDelay, left)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *RedisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
