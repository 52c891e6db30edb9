package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gomfa/internal/auth/entity"
	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
	"github.com/shandysiswandi/gomfa/internal/pkg/session"
)

type UserInfoOutput struct {
	ID               int64
	Email            string
	FirstName        string
	PhoneNumber      string
	Factor           entity.FactorKind
	FactorVerified   bool
	SessionExpiresAt time.Time
}

// UserInfo returns the profile of the session in ctx.
func (s *Usecase) UserInfo(ctx context.Context) (*UserInfoOutput, error) {
	ctx, span := s.startSpan(ctx, "UserInfo")
	defer span.End()

	sess := session.GetAuth(ctx)
	if sess == nil {
		return nil, goerror.NewBusiness("Authentication required", goerror.CodeUnauthorized)
	}

	user, err := s.repoDB.GetUserByID(ctx, sess.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "session user no longer exists", "user_id", sess.UserID)
		return nil, goerror.NewBusiness("user not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by id", "user_id", sess.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &UserInfoOutput{
		ID:               user.ID,
		Email:            user.Email,
		FirstName:        user.FirstName,
		PhoneNumber:      user.Phone,
		Factor:           user.Factor,
		FactorVerified:   user.FactorVerified,
		SessionExpiresAt: sess.ExpiresAt,
	}, nil
}
