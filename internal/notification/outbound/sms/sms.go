package sms

import (
	"context"

	"github.com/shandysiswandi/gomfa/internal/pkg/instrument"
	"github.com/shandysiswandi/gomfa/internal/pkg/sms"
	"go.opentelemetry.io/otel/codes"
)

type SMS struct {
	sender sms.Sender
	ins    instrument.Instrumentation
}

func New(sender sms.Sender, ins instrument.Instrumentation) *SMS {
	return &SMS{sender: sender, ins: ins}
}

func (s *SMS) Send(ctx context.Context, msg sms.Message) error {
	ctx, span := s.ins.Tracer("notification.outbound.sms").Start(ctx, "Send")
	defer span.End()

	if err := s.sender.Send(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
