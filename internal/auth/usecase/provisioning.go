package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/gomfa/internal/auth/entity"
	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
)

type ProvisioningQRInput struct {
	ChallengeToken string `validate:"required"`
}

type ProvisioningQROutput struct {
	PNG []byte
}

// ProvisioningQR renders the authenticator QR code, only while a TOTP
// enrollment challenge is pending.
func (s *Usecase) ProvisioningQR(ctx context.Context, in ProvisioningQRInput) (*ProvisioningQROutput, error) {
	ctx, span := s.startSpan(ctx, "ProvisioningQR")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	ch, err := s.loadChallenge(ctx, s.digest.Digest(in.ChallengeToken))
	if err != nil {
		return nil, err
	}

	if ch.Factor != entity.FactorTOTP || ch.Purpose != entity.ChallengePurposeEnrollment {
		return nil, ErrNotApplicable
	}
	if ch.Exhausted(s.maxAttempts()) {
		return nil, ErrLockedOut
	}
	if ch.Expired(s.clock.Now()) {
		return nil, ErrExpired
	}

	user, err := s.repoDB.GetUserByID(ctx, ch.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by id", "user_id", ch.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	secret, err := s.openSecret(ctx, user)
	if err != nil {
		return nil, err
	}

	png, err := s.totp.QRCode(secret, user.Email, s.number("modules.auth.qr_size", 256))
	if err != nil {
		slog.ErrorContext(ctx, "failed to render qr code", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &ProvisioningQROutput{PNG: png}, nil
}
