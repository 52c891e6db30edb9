package sms

import (
	"context"
	"log/slog"
)

// Log writes messages to slog instead of sending them.
type Log struct{}

// NewLog returns a Log provider.
func NewLog() *Log {
	return &Log{}
}

func (*Log) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	slog.InfoContext(ctx, "sms dispatched to log", "to", MaskPhone(msg.To), "message", msg.Body, "reference", msg.Reference)
	return nil
}
