package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gomfa/internal/auth/entity"
	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
)

type ResendInput struct {
	ChallengeToken string `validate:"required"`
}

type ResendOutput struct {
	ExpiresAt time.Time
	Resends   int
	Remaining int
}

// Resend mints a new SMS code for the pending challenge. The previous code
// stops working, expiry restarts and the attempt counter is kept.
func (s *Usecase) Resend(ctx context.Context, in ResendInput) (*ResendOutput, error) {
	ctx, span := s.startSpan(ctx, "Resend")
	defer span.End()

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

	now := s.clock.Now()
	if err := s.checkResend(ctx, ch, now); err != nil {
		return nil, err
	}

	user, err := s.repoDB.GetUserByID(ctx, ch.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		s.dropChallenge(ctx, ch)
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by id", "user_id", ch.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	code, err := s.reissueCode(ch, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to mint otp code", "user_id", ch.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}
	ch.Resends++

	if err := s.repoCache.UpdateChallenge(ctx, *ch); err != nil {
		if errors.Is(err, goerror.ErrNotFound) {
			return nil, ErrChallengeNotFound
		}
		slog.ErrorContext(ctx, "failed to repo update challenge", "user_id", ch.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}
	release()

	if s.deliver(ctx, user.ID, user.Phone, code) == entity.DeliveryFailed {
		return nil, ErrDeliveryFailed
	}

	return &ResendOutput{
		ExpiresAt: ch.ExpiresAt,
		Resends:   ch.Resends,
		Remaining: max(s.maxResends()-ch.Resends, 0),
	}, nil
}

func (s *Usecase) checkResend(ctx context.Context, ch *entity.Challenge, now time.Time) error {
	if ch.Factor != entity.FactorSMS {
		return ErrNotApplicable
	}
	if ch.Exhausted(s.maxAttempts()) {
		return ErrLockedOut
	}
	if ch.Expired(now) {
		s.dropChallenge(ctx, ch)
		return ErrExpired
	}
	if ch.Resends >= s.maxResends() {
		slog.WarnContext(ctx, "resend cap reached", "user_id", ch.UserID, "resends", ch.Resends)
		return ErrTooManyResends
	}
	if now.Before(ch.LastSentAt.Add(s.resendCooldown())) {
		slog.WarnContext(ctx, "resend inside cooldown", "user_id", ch.UserID)
		return ErrTooManyResends
	}
	return nil
}
