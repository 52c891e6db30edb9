package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/shandysiswandi/gomfa/internal/pkg/stacktrace"
)

// once guards Ack and Nack so only the first response reaches the broker.
type once struct {
	done atomic.Bool
}

func (o *once) first() bool {
	return !o.done.Swap(true)
}

func (o *once) responded() bool {
	return o.done.Load()
}

type responder interface {
	Message
	responded() bool
}

// dispatch runs handler with panic recovery and applies auto ack.
func dispatch(ctx context.Context, driver string, msg responder, handler Handler, autoAck bool) {
	err := safeCall(ctx, driver, func() error { return handler(ctx, msg) })
	if err != nil {
		slog.WarnContext(ctx, "message handler failed", "driver", driver, "topic", msg.Topic(), "message_id", msg.ID(), "error", err)
	}

	if !autoAck || msg.responded() {
		return
	}

	respond := msg.Ack
	if err != nil {
		respond = msg.Nack
	}
	if rerr := respond(ctx); rerr != nil {
		slog.ErrorContext(ctx, "failed to respond to message", "driver", driver, "message_id", msg.ID(), "error", rerr)
	}
}

func safeCall(ctx context.Context, driver string, fn func() error) (err error) {
	defer func() {
		rvr := recover()
		if rvr == nil {
			return
		}
		stack := debug.Stack()
		if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
			slog.ErrorContext(ctx, "panic in message handler", "driver", driver, "panic", rvr, "stack", paths)
		} else {
			slog.ErrorContext(ctx, "panic in message handler", "driver", driver, "panic", rvr, "stack", string(stack))
		}
		err = fmt.Errorf("messaging: panic in %s handler: %v", driver, rvr)
	}()

	return fn()
}

func validateConsume(ctx context.Context, topic string, handler Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}
	return nil
}
