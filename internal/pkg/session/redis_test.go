package session

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/gomfa/internal/pkg/clock"
	"github.com/shandysiswandi/gomfa/internal/pkg/hash"
	"github.com/shandysiswandi/gomfa/internal/pkg/uid"
)

type fixture struct {
	store *RedisStore
	mr    *miniredis.Miniredis
	clk   *clock.Fake
}

func setup(t *testing.T, mode Mode) fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clk := clock.NewFake(time.Now())
	store, err := NewRedisStore(client, hash.NewHMACSHA256("k"), uid.NewRandomToken(32), clk, Config{
		TTL:         30 * time.Minute,
		MaxLifetime: time.Hour,
		Retention:   10 * time.Minute,
		Mode:        mode,
	})
	require.NoError(t, err)

	return fixture{store: store, mr: mr, clk: clk}
}

func TestIssueAndValidate(t *testing.T) {
	f := setup(t, ModeAbsolute)
	ctx := context.Background()

	sess, err := f.store.Issue(ctx, 7)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(sess.Token), 43)

	// the raw token is never a key
	assert.False(t, f.mr.Exists("session:"+sess.Token))

	got, err := f.store.Validate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.UserID)
	assert.Empty(t, got.Token)

	_, err = f.store.Validate(ctx, "forged")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = f.store.Validate(ctx, "")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestAbsoluteExpiry(t *testing.T) {
	f := setup(t, ModeAbsolute)
	ctx := context.Background()

	sess, err := f.store.Issue(ctx, 7)
	require.NoError(t, err)

	f.clk.Advance(29 * time.Minute)
	got, err := f.store.Validate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.ExpiresAt.UnixMilli(), got.ExpiresAt.UnixMilli())

	f.clk.Advance(time.Minute)
	_, err = f.store.Validate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrExpired)

	f.mr.FastForward(time.Hour)
	_, err = f.store.Validate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSlidingExpiryIsCapped(t *testing.T) {
	f := setup(t, ModeSliding)
	ctx := context.Background()

	sess, err := f.store.Issue(ctx, 7)
	require.NoError(t, err)

	f.clk.Advance(20 * time.Minute)
	got, err := f.store.Validate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, f.clk.Now().Add(30*time.Minute).UnixMilli(), got.ExpiresAt.UnixMilli())

	f.clk.Advance(20 * time.Minute)
	got, err = f.store.Validate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.IssuedAt.Add(time.Hour).UnixMilli(), got.ExpiresAt.UnixMilli())

	f.clk.Advance(21 * time.Minute)
	_, err = f.store.Validate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestRevokeIsIdempotent(t *testing.T) {
	f := setup(t, ModeSliding)
	ctx := context.Background()

	sess, err := f.store.Issue(ctx, 7)
	require.NoError(t, err)

	require.NoError(t, f.store.Revoke(ctx, sess.Token))
	require.NoError(t, f.store.Revoke(ctx, sess.Token))

	_, err = f.store.Validate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalid)

	require.NoError(t, f.store.Revoke(ctx, "never-issued"))
	assert.Len(t, f.mr.Keys(), 1)
	require.NoError(t, f.store.Revoke(ctx, ""))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSliding, m)

	m, err = ParseMode("absolute")
	require.NoError(t, err)
	assert.Equal(t, ModeAbsolute, m)

	_, err = ParseMode("forever")
	assert.Error(t, err)
}

func TestNewRedisStoreRejectsZeroTTL(t *testing.T) {
	_, err := NewRedisStore(nil, nil, nil, nil, Config{})
	assert.Error(t, err)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetAuth(ctx))
	assert.Empty(t, GetToken(ctx))

	s := &Session{UserID: 1}
	ctx = SetToken(SetAuth(ctx, s), "tok")
	assert.Same(t, s, GetAuth(ctx))
	assert.Equal(t, "tok", GetToken(ctx))
}

func TestCookie(t *testing.T) {
	c := Cookie{Name: "sid", Secure: true}
	exp := time.Now().Add(time.Hour)

	set := c.Set("tok", exp)
	assert.Equal(t, "/", set.Path)
	assert.True(t, set.HttpOnly)
	assert.True(t, set.Secure)

	clear := c.Clear()
	assert.Equal(t, -1, clear.MaxAge)

	r := httptest.NewRequest("GET", "/", nil)
	assert.Empty(t, c.Read(r))
	r.AddCookie(set)
	assert.Equal(t, "tok", c.Read(r))
}
