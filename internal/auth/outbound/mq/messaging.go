package mq

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/gomfa/internal/pkg/instrument"
	"github.com/shandysiswandi/gomfa/internal/pkg/messaging"
	"github.com/shandysiswandi/gomfa/internal/pkg/uid"
	"github.com/shandysiswandi/gomfa/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

// Messaging hands OTP codes to the notification worker. A successful Send
// means the broker accepted the message, not that the SMS went out.
type Messaging struct {
	client messaging.Messaging
	ids    uid.StringID
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Messaging, ids uid.StringID, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ids: ids, ins: ins}
}

func (m *Messaging) Send(ctx context.Context, phone, code string) error {
	ctx, span := m.ins.Tracer("auth.outbound.mq").Start(ctx, "Send")
	defer span.End()

	body, err := json.Marshal(event.OTPDeliveryMessage{
		DeliveryID:  m.ids.Generate(),
		PhoneNumber: phone,
		Code:        code,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, event.OTPDeliveryDestination, messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(phone),
		Headers: map[string]string{keyOfCorrelationID: cID},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
