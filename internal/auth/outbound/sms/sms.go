package sms

import (
	"context"

	"github.com/shandysiswandi/gomfa/internal/pkg/instrument"
	"github.com/shandysiswandi/gomfa/internal/pkg/sms"
	"github.com/shandysiswandi/gomfa/internal/pkg/uid"
	"github.com/shandysiswandi/gomfa/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

// Direct texts the code from the request path through the SMS provider.
type Direct struct {
	sender sms.Sender
	ids    uid.StringID
	ins    instrument.Instrumentation
}

func NewDirect(sender sms.Sender, ids uid.StringID, ins instrument.Instrumentation) *Direct {
	return &Direct{sender: sender, ids: ids, ins: ins}
}

func (d *Direct) Send(ctx context.Context, phone, code string) error {
	ctx, span := d.ins.Tracer("auth.outbound.sms").Start(ctx, "Send")
	defer span.End()

	msg := event.OTPDeliveryMessage{DeliveryID: d.ids.Generate(), PhoneNumber: phone, Code: code}
	if err := d.sender.Send(ctx, sms.Message{To: phone, Body: msg.Text(), Reference: msg.DeliveryID}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
