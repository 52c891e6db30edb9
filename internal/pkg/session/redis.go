package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shandysiswandi/gomfa/internal/pkg/clock"
	"github.com/shandysiswandi/gomfa/internal/pkg/uid"
)

const (
	fieldUserID  = "uid"
	fieldIssued  = "iat"
	fieldExpires = "exp"
	fieldRevoked = "rev"
)

// revokeScript flips the flag only when the session exists, so revoking an
// unknown token does not create a record.
var revokeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  redis.call('HSET', KEYS[1], 'rev', '1')
  return 1
end
return 0
`)

type digester interface {
	Digest(str string) string
}

// Config tunes RedisStore.
type Config struct {
	TTL         time.Duration
	MaxLifetime time.Duration
	// Retention keeps expired records around so Validate can answer ErrExpired.
	Retention time.Duration
	Mode      Mode
	Prefix    string
}

// RedisStore implements Manager on Redis hashes.
type RedisStore struct {
	client redis.UniversalClient
	digest digester
	tokens uid.Tokener
	clock  clock.Clocker
	cfg    Config
}

// NewRedisStore validates cfg and returns a store.
func NewRedisStore(client redis.UniversalClient, digest digester, tokens uid.Tokener, clk clock.Clocker, cfg Config) (*RedisStore, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("session: ttl must be positive")
	}
	if cfg.MaxLifetime < cfg.TTL {
		cfg.MaxLifetime = cfg.TTL
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeSliding
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "session:"
	}

	return &RedisStore{client: client, digest: digest, tokens: tokens, clock: clk, cfg: cfg}, nil
}

func (s *RedisStore) key(token string) string {
	return s.cfg.Prefix + s.digest.Digest(token)
}

func (s *RedisStore) Issue(ctx context.Context, userID int64) (*Session, error) {
	token, err := s.tokens.Token()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	sess := &Session{Token: token, UserID: userID, IssuedAt: now, ExpiresAt: now.Add(s.cfg.TTL)}
	key := s.key(token)

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			fieldUserID, userID,
			fieldIssued, now.UnixMilli(),
			fieldExpires, sess.ExpiresAt.UnixMilli(),
			fieldRevoked, "0",
		)
		p.PExpireAt(ctx, key, sess.ExpiresAt.Add(s.cfg.Retention))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("session: issue: %w", err)
	}

	return sess, nil
}

func (s *RedisStore) Validate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalid
	}

	key := s.key(token)
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}

	sess, err := decode(vals)
	if err != nil {
		return nil, err
	}
	if sess.Revoked {
		return nil, ErrInvalid
	}

	now := s.clock.Now()
	if !now.Before(sess.ExpiresAt) {
		return nil, ErrExpired
	}

	if s.cfg.Mode == ModeSliding {
		next := now.Add(s.cfg.TTL)
		if hardStop := sess.IssuedAt.Add(s.cfg.MaxLifetime); next.After(hardStop) {
			next = hardStop
		}

		if next.After(sess.ExpiresAt) {
			_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.HSet(ctx, key, fieldExpires, next.UnixMilli())
				p.PExpireAt(ctx, key, next.Add(s.cfg.Retention))
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("session: extend: %w", err)
			}
			sess.ExpiresAt = next
		}
	}

	return sess, nil
}

func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := revokeScript.Run(ctx, s.client, []string{s.key(token)}).Err(); err != nil {
		return fmt.Errorf("session: revoke: %w", err)
	}
	return nil
}

func decode(vals map[string]string) (*Session, error) {
	if len(vals) == 0 {
		return nil, ErrInvalid
	}

	userID, err1 := strconv.ParseInt(vals[fieldUserID], 10, 64)
	iat, err2 := strconv.ParseInt(vals[fieldIssued], 10, 64)
	exp, err3 := strconv.ParseInt(vals[fieldExpires], 10, 64)
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, ErrInvalid
	}

	return &Session{
		UserID:    userID,
		IssuedAt:  time.UnixMilli(iat),
		ExpiresAt: time.UnixMilli(exp),
		Revoked:   vals[fieldRevoked] == "1",
	}, nil
}
