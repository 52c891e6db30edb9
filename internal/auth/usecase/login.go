package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/gomfa/internal/auth/entity"
	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
)

type LoginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// LoginOutput carries Grant when Status is granted, Pending otherwise.
type LoginOutput struct {
	Status  entity.LoginStatus
	Grant   *entity.Grant
	Pending *entity.Pending
}

// Login is the first factor by email and password.
func (s *Usecase) Login(ctx context.Context, in LoginInput) (*LoginOutput, error) {
	ctx, span := s.startSpan(ctx, "Login")
	defer span.End()

	in.Email = normalizeEmail(in.Email)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	user, err := s.repoDB.GetUserByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo get user by email", "error", err)
		return nil, goerror.NewServer(err)
	}

	return s.beginLogin(ctx, user, in.Password)
}

// beginLogin verifies the password and either grants a session or opens a
// challenge. A nil user still pays for one hash verification.
func (s *Usecase) beginLogin(ctx context.Context, user *entity.User, password string) (*LoginOutput, error) {
	if user == nil {
		s.passwords.Burn(password)
		slog.WarnContext(ctx, "login for unknown account")
		return nil, ErrInvalidCredentials
	}

	if !s.passwords.Verify(user.PasswordAlgo, user.PasswordHash, password) {
		slog.WarnContext(ctx, "password user account not match", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	s.upgradePassword(ctx, user, password)

	if user.Factor == entity.FactorNone {
		grant, err := s.grant(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		return &LoginOutput{Status: entity.LoginGranted, Grant: grant}, nil
	}

	purpose := entity.ChallengePurposeLogin
	if !user.FactorVerified {
		purpose = entity.ChallengePurposeEnrollment
	}

	pending, err := s.openChallenge(ctx, user, purpose)
	if err != nil {
		return nil, err
	}
	return &LoginOutput{Status: entity.LoginSecondFactorRequired, Pending: pending}, nil
}

// openChallenge stores a fresh challenge that supersedes any earlier one,
// then delivers the SMS code once the user lock is released.
func (s *Usecase) openChallenge(ctx context.Context, user *entity.User, purpose entity.ChallengePurpose) (*entity.Pending, error) {
	release, err := s.lock(ctx, userLockKey(user.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	ch, code, err := s.newChallenge(user, purpose, s.clock.Now())
	if err != nil {
		slog.ErrorContext(ctx, "failed to mint challenge", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.repoCache.SaveChallenge(ctx, ch); err != nil {
		slog.ErrorContext(ctx, "failed to repo save challenge", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}
	release()

	pending := &entity.Pending{
		ChallengeRef: ch.Ref,
		Factor:       ch.Factor,
		Purpose:      ch.Purpose,
		ExpiresAt:    ch.ExpiresAt,
	}
	if ch.Factor == entity.FactorSMS {
		pending.Delivery = s.deliver(ctx, user.ID, user.Phone, code)
	}

	return pending, nil
}

func (s *Usecase) grant(ctx context.Context, userID int64) (*entity.Grant, error) {
	sess, err := s.sessions.Issue(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue session", "user_id", userID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &entity.Grant{UserID: userID, SessionToken: sess.Token, ExpiresAt: sess.ExpiresAt}, nil
}

// upgradePassword rehashes a digest made by a retired algorithm, so verify
// cost converges on the one Burn spends for unknown accounts. Failure keeps
// the old digest usable and never blocks the login.
func (s *Usecase) upgradePassword(ctx context.Context, user *entity.User, password string) {
	if !s.passwords.Stale(user.PasswordAlgo) {
		return
	}

	digest, algo, err := s.passwords.Hash(password)
	if err != nil {
		slog.ErrorContext(ctx, "failed to rehash password", "user_id", user.ID, "error", err)
		return
	}
	if err := s.repoDB.UpdatePassword(ctx, user.ID, digest, algo); err != nil {
		slog.ErrorContext(ctx, "failed to repo update password", "user_id", user.ID, "error", err)
		return
	}
	slog.InfoContext(ctx, "password digest upgraded", "user_id", user.ID, "from", user.PasswordAlgo, "to", algo)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
