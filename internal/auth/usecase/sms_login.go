package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
)

type LoginByPhoneInput struct {
	PhoneNumber string `validate:"required,e164"`
	Password    string `validate:"required"`
}

// LoginByPhone is Login keyed by the registered phone number.
func (s *Usecase) LoginByPhone(ctx context.Context, in LoginByPhoneInput) (*LoginOutput, error) {
	ctx, span := s.startSpan(ctx, "LoginByPhone")
	defer span.End()

	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	user, err := s.repoDB.GetUserByPhone(ctx, in.PhoneNumber)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo get user by phone", "error", err)
		return nil, goerror.NewServer(err)
	}

	return s.beginLogin(ctx, user, in.Password)
}
