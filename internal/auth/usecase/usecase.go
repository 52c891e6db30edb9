package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/shandysiswandi/gomfa/internal/auth/entity"
	"github.com/shandysiswandi/gomfa/internal/pkg/clock"
	"github.com/shandysiswandi/gomfa/internal/pkg/config"
	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
	"github.com/shandysiswandi/gomfa/internal/pkg/instrument"
	"github.com/shandysiswandi/gomfa/internal/pkg/lock"
	"github.com/shandysiswandi/gomfa/internal/pkg/mfa"
	"github.com/shandysiswandi/gomfa/internal/pkg/otp"
	"github.com/shandysiswandi/gomfa/internal/pkg/session"
	"github.com/shandysiswandi/gomfa/internal/pkg/uid"
	"github.com/shandysiswandi/gomfa/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

type repoDB interface {
	GetUserByEmail(ctx context.Context, email string) (*entity.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*entity.User, error)
	GetUserByID(ctx context.Context, id int64) (*entity.User, error)
	CreateUser(ctx context.Context, in entity.NewUser) error
	MarkFactorVerified(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, digest, algo string) error
}

// repoCache holds challenges. SaveChallenge supersedes the user's current
// challenge; UpdateChallenge and DeleteChallenge return goerror.ErrNotFound
// once the challenge is gone or superseded. ClaimTOTPStep reports false for a
// step that is not newer than the user's last accepted one.
type repoCache interface {
	SaveChallenge(ctx context.Context, ch entity.Challenge) error
	GetChallenge(ctx context.Context, id string) (*entity.Challenge, error)
	UpdateChallenge(ctx context.Context, ch entity.Challenge) error
	DeleteChallenge(ctx context.Context, ch entity.Challenge) error
	ClaimTOTPStep(ctx context.Context, userID, step int64, window time.Duration) (bool, error)
}

// gateway delivers a one-time code to a phone number.
type gateway interface {
	Send(ctx context.Context, phone, code string) error
}

type passwords interface {
	Hash(plaintext string) (digest, algo string, err error)
	Verify(algo, digest, plaintext string) bool
	Burn(plaintext string)
	Stale(algo string) bool
}

type digester interface {
	Digest(str string) string
}

type Usecase struct {
	repoDB    repoDB
	repoCache repoCache
	gateway   gateway
	locker    lock.Locker
	sessions  session.Manager
	passwords passwords
	digest    digester
	tokens    uid.Tokener
	codes     otp.Coder
	totp      otp.OTP
	encryptor mfa.Encryptor
	uid       uid.NumberID
	clock     clock.Clocker
	cfg       config.Config
	validator validator.Validator
	ins       instrument.Instrumentation
}

type Dependency struct {
	RepoDB     repoDB
	RepoCache  repoCache
	Gateway    gateway
	Locker     lock.Locker
	Sessions   session.Manager
	Passwords  passwords
	Digest     digester
	Tokens     uid.Tokener
	Codes      otp.Coder
	Totp       otp.OTP
	Encryptor  mfa.Encryptor
	UID        uid.NumberID
	Clock      clock.Clocker
	Config     config.Config
	Validator  validator.Validator
	Instrument instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:    dep.RepoDB,
		repoCache: dep.RepoCache,
		gateway:   dep.Gateway,
		locker:    dep.Locker,
		sessions:  dep.Sessions,
		passwords: dep.Passwords,
		digest:    dep.Digest,
		tokens:    dep.Tokens,
		codes:     dep.Codes,
		totp:      dep.Totp,
		encryptor: dep.Encryptor,
		uid:       dep.UID,
		clock:     dep.Clock,
		cfg:       dep.Config,
		validator: dep.Validator,
		ins:       dep.Instrument,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("auth.usecase").Start(ctx, name)
}

func (s *Usecase) seconds(key string, def time.Duration) time.Duration {
	if d := s.cfg.GetSecond(key); d > 0 {
		return d
	}
	return def
}

func (s *Usecase) number(key string, def int) int {
	if n := s.cfg.GetInt(key); n > 0 {
		return n
	}
	return def
}

func (s *Usecase) codeTTL() time.Duration {
	return s.seconds("modules.auth.otp.code_ttl_seconds", 5*time.Minute)
}

func (s *Usecase) totpChallengeTTL() time.Duration {
	return s.seconds("modules.auth.otp.totp_challenge_ttl_seconds", 5*time.Minute)
}

func (s *Usecase) resendCooldown() time.Duration {
	return s.seconds("modules.auth.otp.resend_cooldown_seconds", 30*time.Second)
}

func (s *Usecase) deliveryTimeout() time.Duration {
	return s.seconds("modules.auth.delivery.timeout_seconds", 5*time.Second)
}

func (s *Usecase) maxAttempts() int { return s.number("modules.auth.otp.max_attempts", 5) }
func (s *Usecase) maxResends() int  { return s.number("modules.auth.otp.max_resends", 3) }

// lock serializes work on key across replicas.
func (s *Usecase) lock(ctx context.Context, key string) (lock.Release, error) {
	release, err := s.locker.Lock(ctx, key)
	if errors.Is(err, lock.ErrNotAcquired) {
		slog.WarnContext(ctx, "lock is busy", "key", key)
		return nil, goerror.NewBusiness("another request is in progress, please retry", goerror.CodeTooManyRequest)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to acquire lock", "key", key, "error", err)
		return nil, goerror.NewServer(err)
	}
	return release, nil
}

func userLockKey(userID int64) string {
	return "auth:user:" + strconv.FormatInt(userID, 10)
}

func challengeLockKey(challengeID string) string {
	return "auth:challenge:" + challengeID
}
