package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/shandysiswandi/gomfa/internal/pkg/uid"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisConfig tunes RedisLocker.
type RedisConfig struct {
	// TTL bounds how long a crashed holder blocks others.
	TTL time.Duration
	// Wait is the total time Lock keeps retrying.
	Wait time.Duration
	// Interval is the pause between attempts.
	Interval time.Duration
	Prefix   string
}

// RedisLocker implements Locker with SET NX PX and a compare-and-delete release.
type RedisLocker struct {
	client redis.UniversalClient
	tokens uid.Tokener
	cfg    RedisConfig
}

// NewRedisLocker fills zero config values with 10s TTL, 2s wait and 25ms interval.
func NewRedisLocker(client redis.UniversalClient, tokens uid.Tokener, cfg RedisConfig) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 2 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 25 * time.Millisecond
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "lock:"
	}
	return &RedisLocker{client: client, tokens: tokens, cfg: cfg}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (Release, error) {
	token, err := l.tokens.Token()
	if err != nil {
		return nil, err
	}

	fk := l.cfg.Prefix + key
	errBusy := errors.New("busy")

	attempts := uint64(l.cfg.Wait / l.cfg.Interval)
	backoff := retry.WithMaxRetries(attempts, retry.WithJitterPercent(20, retry.NewConstant(l.cfg.Interval)))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		ok, err := l.client.SetNX(ctx, fk, token, l.cfg.TTL).Result()
		if err != nil {
			return err
		}
		if !ok {
			return retry.RetryableError(errBusy)
		}
		return nil
	})
	switch {
	case errors.Is(err, errBusy):
		return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
	case err != nil:
		return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.client, []string{fk}, token).Err(); err != nil {
				slog.WarnContext(ctx, "failed to release lock", "key", key, "error", err)
			}
		})
	}, nil
}
