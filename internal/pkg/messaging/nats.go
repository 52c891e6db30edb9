package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConfig configures the NATS core driver.
type NATSConfig struct {
	URL     string
	Options []nats.Option
}

// NATS implements Messaging on NATS core subjects with queue groups.
type NATS struct {
	conn *nats.Conn

	mu     sync.Mutex
	closed bool
}

// NewNATS connects to cfg.URL, defaulting to nats.DefaultURL.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("messaging: nats connect: %w", err)
	}
	return &NATS{conn: conn}, nil
}

func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true
	return n.conn.Drain()
}

func (n *NATS) Publish(ctx context.Context, subject string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if subject == "" {
		return PublishResult{}, ErrTopicRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}
	if n.isClosed() {
		return PublishResult{}, io.ErrClosedPipe
	}

	nm := nats.NewMsg(subject)
	nm.Data = msg.Body
	for key, val := range msg.Headers {
		nm.Header.Set(key, val)
	}

	if err := n.conn.PublishMsg(nm); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nats publish: %w", err)
	}
	return PublishResult{Topic: subject, Timestamp: time.Now()}, nil
}

func (n *NATS) Consume(ctx context.Context, subject string, handler Handler, opts ...ConsumeOption) error {
	if err := validateConsume(ctx, subject, handler); err != nil {
		return err
	}
	if n.isClosed() {
		return io.ErrClosedPipe
	}
	co := newConsumeOptions(opts...)

	msgs := make(chan *nats.Msg, co.maxInFlight)
	sub, err := n.conn.ChanQueueSubscribe(subject, co.group, msgs)
	if err != nil {
		return fmt.Errorf("messaging: nats subscribe: %w", err)
	}

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case m := <-msgs:
					dispatch(ctx, DriverNATS, &natsMessage{msg: m, at: time.Now()}, handler, co.autoAck)
				}
			}
		}()
	}

	<-ctx.Done()
	uerr := sub.Unsubscribe()
	wg.Wait()
	if uerr != nil && !errors.Is(uerr, nats.ErrConnectionClosed) && !errors.Is(uerr, nats.ErrBadSubscription) {
		return errors.Join(ctx.Err(), uerr)
	}
	return ctx.Err()
}

func (n *NATS) isClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

type natsMessage struct {
	once
	msg *nats.Msg
	at  time.Time
}

func (m *natsMessage) ID() string           { return "" }
func (m *natsMessage) Topic() string        { return m.msg.Subject }
func (m *natsMessage) Body() []byte         { return m.msg.Data }
func (m *natsMessage) Key() []byte          { return nil }
func (m *natsMessage) Timestamp() time.Time { return m.at }
func (m *natsMessage) Attempts() int        { return 1 }

func (m *natsMessage) Headers() map[string]string {
	if len(m.msg.Header) == 0 {
		return nil
	}
	out := make(map[string]string, len(m.msg.Header))
	for key := range m.msg.Header {
		out[key] = m.msg.Header.Get(key)
	}
	return out
}

func (m *natsMessage) Ack(context.Context) error {
	if !m.first() {
		return nil
	}
	return ignoreNoReply(m.msg.Ack())
}

func (m *natsMessage) Nack(context.Context) error {
	if !m.first() {
		return nil
	}
	return ignoreNoReply(m.msg.Nak())
}

// ignoreNoReply drops the error core subscriptions return for acks.
func ignoreNoReply(err error) error {
	if errors.Is(err, nats.ErrMsgNoReply) || errors.Is(err, nats.ErrMsgNotBound) {
		return nil
	}
	return err
}
