package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
)

type LogoutInput struct {
	SessionToken string
}

// Logout revokes the session. Missing, unknown or already revoked tokens succeed.
func (s *Usecase) Logout(ctx context.Context, in LogoutInput) error {
	ctx, span := s.startSpan(ctx, "Logout")
	defer span.End()

	if in.SessionToken == "" {
		return nil
	}

	if err := s.sessions.Revoke(ctx, in.SessionToken); err != nil {
		slog.ErrorContext(ctx, "failed to revoke session", "error", err)
		return goerror.NewServer(err)
	}

	return nil
}
