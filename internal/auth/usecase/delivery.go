package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/gomfa/internal/auth/entity"
)

// deliver sends code under the configured timeout. It must be called with no
// lock held; a failure only downgrades the reported status.
func (s *Usecase) deliver(ctx context.Context, userID int64, phone, code string) entity.DeliveryStatus {
	ctx, span := s.startSpan(ctx, "deliver")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.deliveryTimeout())
	defer cancel()

	if err := s.gateway.Send(ctx, phone, code); err != nil {
		span.RecordError(err)
		slog.WarnContext(ctx, "failed to deliver otp code", "user_id", userID, "error", err)
		return entity.DeliveryFailed
	}
	return entity.DeliverySent
}
