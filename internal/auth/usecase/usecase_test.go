package usecase

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/gomfa/internal/auth/entity"
	"github.com/shandysiswandi/gomfa/internal/auth/outbound/cache"
	"github.com/shandysiswandi/gomfa/internal/pkg/clock"
	"github.com/shandysiswandi/gomfa/internal/pkg/config"
	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
	"github.com/shandysiswandi/gomfa/internal/pkg/hash"
	"github.com/shandysiswandi/gomfa/internal/pkg/instrument"
	"github.com/shandysiswandi/gomfa/internal/pkg/lock"
	"github.com/shandysiswandi/gomfa/internal/pkg/mfa"
	"github.com/shandysiswandi/gomfa/internal/pkg/otp"
	"github.com/shandysiswandi/gomfa/internal/pkg/session"
	"github.com/shandysiswandi/gomfa/internal/pkg/uid"
	"github.com/shandysiswandi/gomfa/internal/pkg/validator"
	"github.com/stretchr/testify/require"
)

const (
	testPassword = "correct horse battery"
	testPhone    = "+15550001111"
	testAESKey   = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="
)

var testConfig = []byte(`
modules:
  auth:
    otp:
      code_ttl_seconds: 300
      totp_challenge_ttl_seconds: 300
      resend_cooldown_seconds: 30
      max_attempts: 5
      max_resends: 3
    delivery:
      timeout_seconds: 2
`)

type fakeDB struct {
	mu    sync.Mutex
	users map[int64]*entity.User
	err   error
}

func newFakeDB() *fakeDB { return &fakeDB{users: map[int64]*entity.User{}} }

func (f *fakeDB) find(match func(*entity.User) bool) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (f *fakeDB) GetUserByEmail(_ context.Context, email string) (*entity.User, error) {
	return f.find(func(u *entity.User) bool { return u.Email == email })
}

func (f *fakeDB) GetUserByPhone(_ context.Context, phone string) (*entity.User, error) {
	return f.find(func(u *entity.User) bool { return u.Phone != "" && u.Phone == phone })
}

func (f *fakeDB) GetUserByID(_ context.Context, id int64) (*entity.User, error) {
	return f.find(func(u *entity.User) bool { return u.ID == id })
}

func (f *fakeDB) CreateUser(_ context.Context, in entity.NewUser) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, u := range f.users {
		if u.Email == in.Email || (in.Phone != "" && u.Phone == in.Phone) {
			return goerror.ErrConflict
		}
	}
	f.users[in.ID] = &entity.User{
		ID:           in.ID,
		Email:        in.Email,
		FirstName:    in.FirstName,
		Phone:        in.Phone,
		PasswordHash: in.PasswordHash,
		PasswordAlgo: in.PasswordAlgo,
		Factor:       in.Factor,
		TOTPSecret:   in.TOTPSecret,
	}
	return nil
}

func (f *fakeDB) UpdatePassword(_ context.Context, id int64, digest, algo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return goerror.ErrNotFound
	}
	u.PasswordHash, u.PasswordAlgo = digest, algo
	return nil
}

func (f *fakeDB) MarkFactorVerified(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return goerror.ErrNotFound
	}
	u.FactorVerified = true
	return nil
}

// fakeCache keeps one challenge per user like the Redis store does.
type fakeCache struct {
	mu     sync.Mutex
	byID   map[string]entity.Challenge
	byUser map[int64]string
	steps  map[int64]int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{byID: map[string]entity.Challenge{}, byUser: map[int64]string{}, steps: map[int64]int64{}}
}

func (f *fakeCache) ClaimTOTPStep(_ context.Context, userID, step int64, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if last, ok := f.steps[userID]; ok && last >= step {
		return false, nil
	}
	f.steps[userID] = step
	return true, nil
}

func (f *fakeCache) SaveChallenge(_ context.Context, ch entity.Challenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if old, ok := f.byUser[ch.UserID]; ok {
		delete(f.byID, old)
	}
	ch.Ref = ""
	f.byID[ch.ID] = ch
	f.byUser[ch.UserID] = ch.ID
	return nil
}

func (f *fakeCache) GetChallenge(_ context.Context, id string) (*entity.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.byID[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return &ch, nil
}

func (f *fakeCache) UpdateChallenge(_ context.Context, ch entity.Challenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[ch.ID]; !ok {
		return goerror.ErrNotFound
	}
	f.byID[ch.ID] = ch
	return nil
}

func (f *fakeCache) DeleteChallenge(_ context.Context, ch entity.Challenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[ch.ID]; !ok {
		return goerror.ErrNotFound
	}
	delete(f.byID, ch.ID)
	if f.byUser[ch.UserID] == ch.ID {
		delete(f.byUser, ch.UserID)
	}
	return nil
}

type sent struct {
	phone string
	code  string
}

type fakeGateway struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeGateway) Send(_ context.Context, phone, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{phone: phone, code: code})
	return nil
}

func (f *fakeGateway) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "no code was delivered")
	return f.sent[len(f.sent)-1].code
}

type fakeSessions struct {
	mu       sync.Mutex
	seq      int
	sessions map[string]*session.Session
	revoked  []string
	now      func() time.Time
}

func (f *fakeSessions) Issue(_ context.Context, userID int64) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	now := f.now()
	s := &session.Session{Token: "sess-" + strconv.Itoa(f.seq), UserID: userID, IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	f.sessions[s.Token] = s
	return s, nil
}

func (f *fakeSessions) Validate(_ context.Context, token string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok {
		return nil, session.ErrInvalid
	}
	return s, nil
}

func (f *fakeSessions) Revoke(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, token)
	f.revoked = append(f.revoked, token)
	return nil
}

func (f *fakeSessions) issued() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}

type fixture struct {
	uc        *Usecase
	db        *fakeDB
	cache     *fakeCache
	gateway   *fakeGateway
	sessions  *fakeSessions
	clock     *clock.Fake
	totp      *otp.TOTP
	encryptor *mfa.AESGCMEncryptor
	passwords *hash.Passwords
	snowflake *uid.Snowflake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFakeCache()
	f := newFixtureWith(t, store, lock.NewLocal())
	f.cache = store
	return f
}

// newRedisFixture backs challenges and locks with miniredis.
func newRedisFixture(t *testing.T) (*fixture, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	locker := lock.NewRedisLocker(rdb, uid.NewRandomToken(16), lock.RedisConfig{
		TTL:      5 * time.Second,
		Wait:     5 * time.Second,
		Interval: 5 * time.Millisecond,
	})
	f := newFixtureWith(t, cache.NewCache(rdb, instrument.NewNoop(), 10*time.Minute), locker)
	// Absolute expiries come from the fake clock.
	mr.SetTime(f.clock.Now())
	return f, mr
}

func newFixtureWith(t *testing.T, store repoCache, locker lock.Locker) *fixture {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", testConfig)
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	passwords, err := hash.NewPasswords(hash.AlgoBcrypt, map[string]hash.Hash{
		hash.AlgoBcrypt: hash.NewBcrypt(4, "pepper"),
	})
	require.NoError(t, err)

	keys, err := mfa.NewStaticKeyProviderBase64(testAESKey)
	require.NoError(t, err)

	snowflake, err := uid.NewSnowflake(1)
	require.NoError(t, err)

	clk := clock.NewFake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	f := &fixture{
		db:        newFakeDB(),
		gateway:   &fakeGateway{},
		sessions:  &fakeSessions{sessions: map[string]*session.Session{}, now: clk.Now},
		clock:     clk,
		totp:      otp.NewTOTP("gomfa", 30, 1, 6),
		encryptor: mfa.NewAESGCMEncryptor(keys),
		passwords: passwords,
		snowflake: snowflake,
	}

	f.uc = New(Dependency{
		RepoDB:     f.db,
		RepoCache:  store,
		Gateway:    f.gateway,
		Locker:     locker,
		Sessions:   f.sessions,
		Passwords:  passwords,
		Digest:     hash.NewHMACSHA256("test-secret"),
		Tokens:     uid.NewRandomToken(32),
		Codes:      otp.NewNumeric(6),
		Totp:       f.totp,
		Encryptor:  f.encryptor,
		UID:        snowflake,
		Clock:      clk,
		Config:     cfg,
		Validator:  v,
		Instrument: instrument.NewNoop(),
	})

	return f
}

type seededUser struct {
	*entity.User
	secret string
}

// addUser stores an account with testPassword. TOTP users get a sealed secret.
func (f *fixture) addUser(t *testing.T, email string, factor entity.FactorKind, verified bool) seededUser {
	t.Helper()

	digest, algo, err := f.passwords.Hash(testPassword)
	require.NoError(t, err)

	u := &entity.User{
		ID:             f.snowflake.Generate(),
		Email:          email,
		FirstName:      "Ada",
		PasswordHash:   digest,
		PasswordAlgo:   algo,
		Factor:         factor,
		FactorVerified: verified,
	}
	if factor == entity.FactorSMS {
		u.Phone = testPhone
	}

	var secret string
	if factor == entity.FactorTOTP {
		secret, _, err = f.totp.Generate(email)
		require.NoError(t, err)
		u.TOTPSecret, err = f.encryptor.Encrypt([]byte(secret), mfa.Scope{UserID: u.ID, Purpose: mfa.PurposeTOTPSeed})
		require.NoError(t, err)
	}

	f.db.mu.Lock()
	f.db.users[u.ID] = u
	f.db.mu.Unlock()

	return seededUser{User: u, secret: secret}
}

// pending logs user in and returns the challenge reference.
func (f *fixture) pending(t *testing.T, email string) string {
	t.Helper()

	out, err := f.uc.Login(context.Background(), LoginInput{Email: email, Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, entity.LoginSecondFactorRequired, out.Status)
	require.NotNil(t, out.Pending)
	return out.Pending.ChallengeRef
}

// wrongCode returns a six digit code different from code.
func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

