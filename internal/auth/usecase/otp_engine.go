package usecase

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gomfa/internal/auth/entity"
	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
	"github.com/shandysiswandi/gomfa/internal/pkg/mfa"
)

// newChallenge mints a challenge for user. For SMS it also returns the
// plaintext code, which is never stored.
func (s *Usecase) newChallenge(user *entity.User, purpose entity.ChallengePurpose, now time.Time) (entity.Challenge, string, error) {
	ref, err := s.tokens.Token()
	if err != nil {
		return entity.Challenge{}, "", err
	}

	ch := entity.Challenge{
		ID:         s.digest.Digest(ref),
		Ref:        ref,
		UserID:     user.ID,
		Factor:     user.Factor,
		Purpose:    purpose,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.totpChallengeTTL()),
		LastSentAt: now,
	}
	if user.Factor != entity.FactorSMS {
		return ch, "", nil
	}

	code, err := s.reissueCode(&ch, now)
	if err != nil {
		return entity.Challenge{}, "", err
	}
	return ch, code, nil
}

// reissueCode replaces the code of an SMS challenge and restarts its validity.
// Attempts are left untouched.
func (s *Usecase) reissueCode(ch *entity.Challenge, now time.Time) (string, error) {
	code, err := s.codes.Code()
	if err != nil {
		return "", err
	}

	ch.CodeSalt = rand.Text()
	ch.CodeHash = s.codeDigest(ch.CodeSalt, code)
	ch.ExpiresAt = now.Add(s.codeTTL())
	ch.LastSentAt = now
	return code, nil
}

func (s *Usecase) codeDigest(salt, code string) string {
	return s.digest.Digest(salt + ":" + code)
}

// checkCode applies the lockout, expiry and comparison rules in that order.
// It returns nil on a match and a rejection otherwise; it never mutates ch.
// An accepted TOTP code burns its time step for the user.
func (s *Usecase) checkCode(ctx context.Context, ch *entity.Challenge, code string, now time.Time) error {
	if ch.Exhausted(s.maxAttempts()) {
		return ErrLockedOut
	}
	if ch.Expired(now) {
		return ErrExpired
	}

	switch ch.Factor {
	case entity.FactorSMS:
		want := []byte(ch.CodeHash)
		got := []byte(s.codeDigest(ch.CodeSalt, code))
		if subtle.ConstantTimeCompare(want, got) == 1 {
			return nil
		}
		return ErrInvalidCode

	case entity.FactorTOTP:
		secret, err := s.totpSecret(ctx, ch.UserID)
		if err != nil {
			return err
		}
		step, ok := s.totp.Match(code, secret, now)
		if !ok {
			return ErrInvalidCode
		}

		fresh, err := s.repoCache.ClaimTOTPStep(ctx, ch.UserID, step, s.totp.Window())
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo claim totp step", "user_id", ch.UserID, "error", err)
			return goerror.NewServer(err)
		}
		if !fresh {
			slog.WarnContext(ctx, "totp code already used", "user_id", ch.UserID)
			return ErrInvalidCode
		}
		return nil

	default:
		slog.ErrorContext(ctx, "challenge has no usable factor", "user_id", ch.UserID, "factor", ch.Factor)
		return ErrNotApplicable
	}
}

// totpSecret loads and opens the sealed TOTP secret of a user.
func (s *Usecase) totpSecret(ctx context.Context, userID int64) (string, error) {
	user, err := s.repoDB.GetUserByID(ctx, userID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "challenge user no longer exists", "user_id", userID)
		return "", ErrChallengeNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by id", "user_id", userID, "error", err)
		return "", goerror.NewServer(err)
	}

	return s.openSecret(ctx, user)
}

func (s *Usecase) openSecret(ctx context.Context, user *entity.User) (string, error) {
	if len(user.TOTPSecret) == 0 {
		slog.ErrorContext(ctx, "user has no totp secret", "user_id", user.ID)
		return "", goerror.NewServer(errors.New("totp secret missing"))
	}

	raw, err := s.encryptor.Decrypt(user.TOTPSecret, mfa.Scope{UserID: user.ID, Purpose: mfa.PurposeTOTPSeed})
	if err != nil {
		slog.ErrorContext(ctx, "failed to decrypt totp secret", "user_id", user.ID, "error", err)
		return "", goerror.NewServer(err)
	}
	return string(raw), nil
}
