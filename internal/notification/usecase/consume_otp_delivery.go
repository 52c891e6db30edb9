package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/gomfa/internal/notification/entity"
	"github.com/shandysiswandi/gomfa/internal/pkg/idempotency"
	"github.com/shandysiswandi/gomfa/internal/pkg/sms"
	"github.com/shandysiswandi/gomfa/internal/shared/event"
)

type ConsumeOTPDeliveryInput struct {
	DeliveryID  string `validate:"required"`
	PhoneNumber string `validate:"required,e164"`
	Code        string `validate:"required,otp"`
	// Attempts is the broker delivery count of the message.
	Attempts int
}

// ConsumeOTPDelivery texts one code, once per DeliveryID. A failed send is
// returned so the broker redelivers it, until the attempt budget is spent.
func (s *Usecase) ConsumeOTPDelivery(ctx context.Context, in ConsumeOTPDeliveryInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeOTPDelivery")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "delivery_id", in.DeliveryID, "error", err)
		return nil
	}

	err := s.idempotency.Exec(ctx, "sms:"+in.DeliveryID, func(ctx context.Context) error {
		return s.send(ctx, in)
	}, idempotency.WithStateTTL(s.completedTTL()))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, idempotency.ErrAlreadyCompleted):
		slog.InfoContext(ctx, "otp delivery already sent", "delivery_id", in.DeliveryID)
		return nil
	case errors.Is(err, idempotency.ErrAlreadyInProgress):
		slog.WarnContext(ctx, "otp delivery in progress elsewhere", "delivery_id", in.DeliveryID)
		return err
	case in.Attempts >= s.maxAttempts():
		slog.ErrorContext(ctx, "otp delivery dropped after max attempts", "delivery_id", in.DeliveryID, "attempts", in.Attempts, "error", err)
		return nil
	default:
		return err
	}
}

func (s *Usecase) send(ctx context.Context, in ConsumeOTPDeliveryInput) error {
	msg := event.OTPDeliveryMessage{DeliveryID: in.DeliveryID, PhoneNumber: in.PhoneNumber, Code: in.Code}
	sendErr := s.repoSMS.Send(ctx, sms.Message{To: in.PhoneNumber, Body: msg.Text(), Reference: in.DeliveryID})

	record := entity.Delivery{
		ID:          s.uid.Generate(),
		DeliveryID:  in.DeliveryID,
		PhoneMasked: sms.MaskPhone(in.PhoneNumber),
		Status:      entity.DeliverySent,
	}
	if sendErr != nil {
		record.Status = entity.DeliveryFailed
		record.Error = sendErr.Error()
		slog.WarnContext(ctx, "failed to send otp sms", "delivery_id", in.DeliveryID, "attempts", in.Attempts, "error", sendErr)
	}

	// best effort; it never changes the send outcome
	if err := s.repoDB.RecordDelivery(ctx, record); err != nil {
		slog.ErrorContext(ctx, "failed to repo record delivery", "delivery_id", in.DeliveryID, "error", err)
	}

	return sendErr
}
