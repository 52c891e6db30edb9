package inbound

import (
	"context"

	"github.com/shandysiswandi/gomfa/internal/notification/usecase"
)

type uc interface {
	ConsumeOTPDelivery(ctx context.Context, in usecase.ConsumeOTPDeliveryInput) error
}
