package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/gomfa/internal/auth/entity"
	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
	"github.com/shandysiswandi/gomfa/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	challengePrefix = "mfa:ch:"
	pointerPrefix   = "mfa:cu:"
	livePrefix      = "mfa:lv:"
	totpStepPrefix  = "mfa:ts:"
	maxWatchRetries = 3
)

const (
	fieldUserID     = "uid"
	fieldFactor     = "fac"
	fieldPurpose    = "pur"
	fieldCodeHash   = "ch"
	fieldCodeSalt   = "cs"
	fieldIssuedAt   = "iat"
	fieldExpiresAt  = "exp"
	fieldAttempts   = "att"
	fieldResends    = "rs"
	fieldLastSentAt = "lst"
)

// updateScript rewrites a challenge only while it exists, so a write racing a
// supersession never resurrects it. The user pointer follows the new expiry.
// The live key is restarted only when the code was sent again.
var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
if redis.call('HGET', KEYS[1], 'lst') ~= ARGV[4] then
  local ttl = tonumber(ARGV[3])
  if ttl > 0 then
    redis.call('SET', KEYS[3], '1', 'PX', ttl)
  else
    redis.call('DEL', KEYS[3])
  end
end
redis.call('HSET', KEYS[1], unpack(ARGV, 5))
redis.call('PEXPIREAT', KEYS[1], ARGV[1])
if redis.call('GET', KEYS[2]) == ARGV[2] then
  redis.call('PEXPIREAT', KEYS[2], ARGV[1])
end
return 1
`)

// deleteScript removes a challenge and its user pointer when it still points at it.
var deleteScript = redis.NewScript(`
local n = redis.call('DEL', KEYS[1])
redis.call('DEL', KEYS[3])
if redis.call('GET', KEYS[2]) == ARGV[1] then
  redis.call('DEL', KEYS[2])
end
return n
`)

// claimStepScript accepts a TOTP step only when it is newer than the last
// one accepted for the user.
var claimStepScript = redis.NewScript(`
local last = redis.call('GET', KEYS[1])
if last and tonumber(last) >= tonumber(ARGV[1]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

// Cache keeps challenges in Redis hashes. Records live until ExpiresAt plus
// retention so that late submissions still report Expired or LockedOut.
//
// Code validity is also tracked by a live key whose TTL runs on the Redis
// clock. Once it is gone the challenge is returned with Lapsed set, whatever
// the caller's wall clock says.
//
// Keys are not hash tagged; a Redis Cluster deployment needs a single slot.
type Cache struct {
	client    redis.UniversalClient
	ins       instrument.Instrumentation
	retention time.Duration
}

func NewCache(client redis.UniversalClient, ins instrument.Instrumentation, retention time.Duration) *Cache {
	return &Cache{client: client, ins: ins, retention: retention}
}

func (c *Cache) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.ins.Tracer("auth.outbound.cache").Start(ctx, name)
}

func (c *Cache) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func challengeKey(id string) string { return challengePrefix + id }

func pointerKey(userID int64) string { return pointerPrefix + strconv.FormatInt(userID, 10) }

func liveKey(id string) string { return livePrefix + id }

func totpStepKey(userID int64) string { return totpStepPrefix + strconv.FormatInt(userID, 10) }

// validity is measured on the issuing clock only, so it carries no skew.
func validity(ch entity.Challenge) time.Duration {
	return ch.ExpiresAt.Sub(ch.LastSentAt)
}

func (c *Cache) until(ch entity.Challenge) time.Time {
	return ch.ExpiresAt.Add(c.retention)
}

// SaveChallenge stores ch as the user's only live challenge, deleting the
// challenge it supersedes in the same transaction.
func (c *Cache) SaveChallenge(ctx context.Context, ch entity.Challenge) (err error) {
	ctx, span := c.startSpan(ctx, "SaveChallenge")
	defer func() { c.endSpan(span, err) }()

	ptr := pointerKey(ch.UserID)
	key := challengeKey(ch.ID)
	until := c.until(ch)

	txf := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, ptr).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			if old != "" && old != ch.ID {
				p.Del(ctx, challengeKey(old), liveKey(old))
			}
			p.Del(ctx, key, liveKey(ch.ID))
			p.HSet(ctx, key, encode(ch))
			p.PExpireAt(ctx, key, until)
			if ttl := validity(ch); ttl > 0 {
				p.Set(ctx, liveKey(ch.ID), 1, ttl)
			}
			p.Set(ctx, ptr, ch.ID, 0)
			p.PExpireAt(ctx, ptr, until)
			return nil
		})
		return err
	}

	for range maxWatchRetries {
		err = c.client.Watch(ctx, txf, ptr)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (c *Cache) GetChallenge(ctx context.Context, id string) (_ *entity.Challenge, err error) {
	ctx, span := c.startSpan(ctx, "GetChallenge")
	defer func() { c.endSpan(span, err) }()

	var (
		all  *redis.MapStringStringCmd
		live *redis.IntCmd
	)
	_, err = c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		all = p.HGetAll(ctx, challengeKey(id))
		live = p.Exists(ctx, liveKey(id))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(all.Val()) == 0 {
		return nil, goerror.ErrNotFound
	}

	ch, err := decode(id, all.Val())
	if err != nil {
		return nil, err
	}
	ch.Lapsed = live.Val() == 0
	return ch, nil
}

func (c *Cache) UpdateChallenge(ctx context.Context, ch entity.Challenge) (err error) {
	ctx, span := c.startSpan(ctx, "UpdateChallenge")
	defer func() { c.endSpan(span, err) }()

	fields := encode(ch)
	args := make([]any, 0, 4+len(fields)*2)
	args = append(args, c.until(ch).UnixMilli(), ch.ID, validity(ch).Milliseconds(), ch.LastSentAt.UnixMilli())
	for k, v := range fields {
		args = append(args, k, v)
	}

	keys := []string{challengeKey(ch.ID), pointerKey(ch.UserID), liveKey(ch.ID)}
	n, err := updateScript.Run(ctx, c.client, keys, args...).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return goerror.ErrNotFound
	}
	return nil
}

func (c *Cache) DeleteChallenge(ctx context.Context, ch entity.Challenge) (err error) {
	ctx, span := c.startSpan(ctx, "DeleteChallenge")
	defer func() { c.endSpan(span, err) }()

	keys := []string{challengeKey(ch.ID), pointerKey(ch.UserID), liveKey(ch.ID)}
	n, err := deleteScript.Run(ctx, c.client, keys, ch.ID).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return goerror.ErrNotFound
	}
	return nil
}

// ClaimTOTPStep records step as the user's last accepted TOTP step. It
// reports false when step, or a later one, was already accepted.
func (c *Cache) ClaimTOTPStep(ctx context.Context, userID, step int64, window time.Duration) (_ bool, err error) {
	ctx, span := c.startSpan(ctx, "ClaimTOTPStep")
	defer func() { c.endSpan(span, err) }()

	n, err := claimStepScript.Run(ctx, c.client, []string{totpStepKey(userID)}, step, window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func encode(ch entity.Challenge) map[string]any {
	return map[string]any{
		fieldUserID:     ch.UserID,
		fieldFactor:     string(ch.Factor),
		fieldPurpose:    string(ch.Purpose),
		fieldCodeHash:   ch.CodeHash,
		fieldCodeSalt:   ch.CodeSalt,
		fieldIssuedAt:   ch.IssuedAt.UnixMilli(),
		fieldExpiresAt:  ch.ExpiresAt.UnixMilli(),
		fieldAttempts:   ch.Attempts,
		fieldResends:    ch.Resends,
		fieldLastSentAt: ch.LastSentAt.UnixMilli(),
	}
}

func decode(id string, vals map[string]string) (*entity.Challenge, error) {
	var errs []error
	num := func(field string) int64 {
		n, err := strconv.ParseInt(vals[field], 10, 64)
		if err != nil {
			errs = append(errs, err)
		}
		return n
	}

	ch := &entity.Challenge{
		ID:         id,
		UserID:     num(fieldUserID),
		Factor:     entity.FactorKind(vals[fieldFactor]),
		Purpose:    entity.ChallengePurpose(vals[fieldPurpose]),
		CodeHash:   vals[fieldCodeHash],
		CodeSalt:   vals[fieldCodeSalt],
		IssuedAt:   time.UnixMilli(num(fieldIssuedAt)),
		ExpiresAt:  time.UnixMilli(num(fieldExpiresAt)),
		Attempts:   int(num(fieldAttempts)),
		Resends:    int(num(fieldResends)),
		LastSentAt: time.UnixMilli(num(fieldLastSentAt)),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return ch, nil
}
