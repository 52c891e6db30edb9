package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/gomfa/internal/notification/usecase"
	"github.com/shandysiswandi/gomfa/internal/pkg/instrument"
	"github.com/shandysiswandi/gomfa/internal/pkg/messaging"
	"github.com/shandysiswandi/gomfa/internal/pkg/uid"
	"github.com/shandysiswandi/gomfa/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, msg messaging.Message) context.Context {
	if cID := messaging.Header(msg, keyOfCorrelationID); cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

// OTPDelivery handles auth_otp_delivery. The body carries a live code, so it
// is never logged.
func (h *MQHandler) OTPDelivery(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg)

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "OTPDelivery")
	defer span.End()

	slog.InfoContext(ctx, "consume: otp delivery", "message_id", msg.ID(), "attempts", msg.Attempts())

	var payload event.OTPDeliveryMessage
	if err := json.Unmarshal(msg.Body(), &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of otp delivery", "message_id", msg.ID(), "error", err)
		return nil
	}

	if err := h.uc.ConsumeOTPDelivery(ctx, usecase.ConsumeOTPDeliveryInput{
		DeliveryID:  payload.DeliveryID,
		PhoneNumber: payload.PhoneNumber,
		Code:        payload.Code,
		Attempts:    msg.Attempts(),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume otp delivery", "delivery_id", payload.DeliveryID, "error", err)
		return err
	}

	return nil
}
