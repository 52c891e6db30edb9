package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/gomfa/internal/auth/entity"
	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
)

type SecondFactorInput struct {
	ChallengeToken string `validate:"required"`
	Code           string `validate:"required,otp"`
	// Factor, when set, must match the challenge factor.
	Factor entity.FactorKind
}

// SubmitSecondFactor checks a code against the pending challenge. Success
// consumes the challenge and issues exactly one session.
func (s *Usecase) SubmitSecondFactor(ctx context.Context, in SecondFactorInput) (*LoginOutput, error) {
	ctx, span := s.startSpan(ctx, "SubmitSecondFactor")
	defer span.End()

	in.Code = strings.TrimSpace(in.Code)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	id := s.digest.Digest(in.ChallengeToken)
	release, err := s.lock(ctx, challengeLockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	ch, err := s.loadChallenge(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Factor != "" && in.Factor != entity.FactorNone && in.Factor != ch.Factor {
		slog.WarnContext(ctx, "second factor submitted to wrong endpoint", "user_id", ch.UserID, "want", ch.Factor, "got", in.Factor)
		return nil, ErrNotApplicable
	}

	now := s.clock.Now()
	switch verr := s.checkCode(ctx, ch, in.Code, now); {
	case verr == nil:
	case errors.Is(verr, ErrExpired):
		s.dropChallenge(ctx, ch)
		return nil, verr
	case errors.Is(verr, ErrInvalidCode):
		return nil, s.recordFailure(ctx, ch)
	default:
		return nil, verr
	}

	if err := s.repoCache.DeleteChallenge(ctx, *ch); err != nil {
		if errors.Is(err, goerror.ErrNotFound) {
			slog.WarnContext(ctx, "challenge superseded during verification", "user_id", ch.UserID)
			return nil, ErrChallengeNotFound
		}
		slog.ErrorContext(ctx, "failed to repo delete challenge", "user_id", ch.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if ch.Purpose == entity.ChallengePurposeEnrollment {
		if err := s.repoDB.MarkFactorVerified(ctx, ch.UserID); err != nil {
			slog.ErrorContext(ctx, "failed to repo mark factor verified", "user_id", ch.UserID, "error", err)
			return nil, goerror.NewServer(err)
		}
	}

	grant, err := s.grant(ctx, ch.UserID)
	if err != nil {
		return nil, err
	}
	return &LoginOutput{Status: entity.LoginGranted, Grant: grant}, nil
}

// recordFailure counts a wrong code. The attempt that reaches the limit
// reports LockedOut and leaves the challenge as a non-grantable tombstone.
func (s *Usecase) recordFailure(ctx context.Context, ch *entity.Challenge) error {
	ch.Attempts++
	if err := s.repoCache.UpdateChallenge(ctx, *ch); err != nil {
		if errors.Is(err, goerror.ErrNotFound) {
			return ErrChallengeNotFound
		}
		slog.ErrorContext(ctx, "failed to repo update challenge", "user_id", ch.UserID, "error", err)
		return goerror.NewServer(err)
	}

	if ch.Exhausted(s.maxAttempts()) {
		slog.WarnContext(ctx, "challenge locked out", "user_id", ch.UserID, "attempts", ch.Attempts)
		return ErrLockedOut
	}

	slog.WarnContext(ctx, "invalid second factor code", "user_id", ch.UserID, "attempts", ch.Attempts)
	return ErrInvalidCode
}

func (s *Usecase) loadChallenge(ctx context.Context, id string) (*entity.Challenge, error) {
	ch, err := s.repoCache.GetChallenge(ctx, id)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "challenge not found")
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get challenge", "error", err)
		return nil, goerror.NewServer(err)
	}
	return ch, nil
}

// dropChallenge removes a dead challenge; failure only leaves it to expire.
func (s *Usecase) dropChallenge(ctx context.Context, ch *entity.Challenge) {
	if err := s.repoCache.DeleteChallenge(ctx, *ch); err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo delete expired challenge", "user_id", ch.UserID, "error", err)
	}
}
