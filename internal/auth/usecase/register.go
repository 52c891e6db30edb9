package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/gomfa/internal/auth/entity"
	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
	"github.com/shandysiswandi/gomfa/internal/pkg/mfa"
)

type RegisterInput struct {
	Email       string `validate:"required,email,max=254"`
	Password    string `validate:"required,password"`
	FirstName   string `validate:"required,max=100"`
	PhoneNumber string `validate:"required_if=AuthMethod sms,omitempty,e164"`
	AuthMethod  string `validate:"required,factor"`
}

// RegisterOutput carries the enrollment challenge, nil for factor none.
type RegisterOutput struct {
	UserID  int64
	Pending *entity.Pending
}

// Register creates an account and opens its enrollment challenge through the
// same lifecycle a login uses.
func (s *Usecase) Register(ctx context.Context, in RegisterInput) (*RegisterOutput, error) {
	ctx, span := s.startSpan(ctx, "Register")
	defer span.End()

	in.Email = normalizeEmail(in.Email)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.FirstName = strings.TrimSpace(in.FirstName)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	digest, algo, err := s.passwords.Hash(in.Password)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash password", "error", err)
		return nil, goerror.NewServer(err)
	}

	user := &entity.User{
		ID:           s.uid.Generate(),
		Email:        in.Email,
		FirstName:    in.FirstName,
		Phone:        in.PhoneNumber,
		PasswordHash: digest,
		PasswordAlgo: algo,
		Factor:       entity.FactorKindFromString(in.AuthMethod),
	}

	if user.Factor == entity.FactorTOTP {
		secret, _, err := s.totp.Generate(user.Email)
		if err != nil {
			slog.ErrorContext(ctx, "failed to generate totp secret", "error", err)
			return nil, goerror.NewServer(err)
		}

		sealed, err := s.encryptor.Encrypt([]byte(secret), mfa.Scope{UserID: user.ID, Purpose: mfa.PurposeTOTPSeed})
		if err != nil {
			slog.ErrorContext(ctx, "failed to encrypt totp secret", "error", err)
			return nil, goerror.NewServer(err)
		}
		user.TOTPSecret = sealed
	}

	err = s.repoDB.CreateUser(ctx, entity.NewUser{
		ID:           user.ID,
		Email:        user.Email,
		FirstName:    user.FirstName,
		Phone:        user.Phone,
		PasswordHash: user.PasswordHash,
		PasswordAlgo: user.PasswordAlgo,
		Factor:       user.Factor,
		TOTPSecret:   user.TOTPSecret,
	})
	if errors.Is(err, goerror.ErrConflict) {
		slog.WarnContext(ctx, "registration for existing account")
		return nil, goerror.NewBusiness("email or phone number already registered", goerror.CodeConflict)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo create user", "error", err)
		return nil, goerror.NewServer(err)
	}

	if user.Factor == entity.FactorNone {
		return &RegisterOutput{UserID: user.ID}, nil
	}

	pending, err := s.openChallenge(ctx, user, entity.ChallengePurposeEnrollment)
	if err != nil {
		return nil, err
	}
	return &RegisterOutput{UserID: user.ID, Pending: pending}, nil
}
