package messaging

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	memoryBuffer      = 256
	memoryMaxAttempts = 5
)

// Memory is an in-process bus for single-node runs and tests. Every group
// subscribed to a topic receives each message once; consumers sharing a
// group compete. Messages published before any group exists are held and
// handed to the first group that subscribes.
type Memory struct {
	seq atomic.Uint64

	mu      sync.Mutex
	closed  bool
	topics  map[string]map[string]chan *memoryMessage
	pending map[string][]*memoryMessage
}

// NewMemory returns an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{
		topics:  map[string]map[string]chan *memoryMessage{},
		pending: map[string][]*memoryMessage{},
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) Publish(ctx context.Context, topic string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if topic == "" {
		return PublishResult{}, ErrTopicRequired
	}

	id := strconv.FormatUint(m.seq.Add(1), 10)
	now := time.Now()
	deliver := func() error {
		return m.fanout(ctx, topic, func(group string) *memoryMessage {
			return &memoryMessage{bus: m, id: id, topic: topic, group: group, out: msg, at: now, attempts: 1}
		})
	}

	if msg.Delay > 0 {
		time.AfterFunc(msg.Delay, func() {
			if err := deliver(); err != nil {
				slog.Warn("delayed message dropped", "topic", topic, "message_id", id, "error", err)
			}
		})
	} else if err := deliver(); err != nil {
		return PublishResult{}, err
	}

	return PublishResult{MessageID: id, Topic: topic, Timestamp: now}, nil
}

func (m *Memory) fanout(ctx context.Context, topic string, build func(group string) *memoryMessage) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return io.ErrClosedPipe
	}
	groups := m.topics[topic]
	if len(groups) == 0 {
		m.pending[topic] = append(m.pending[topic], build(""))
		m.mu.Unlock()
		return nil
	}
	targets := make(map[string]chan *memoryMessage, len(groups))
	for name, ch := range groups {
		targets[name] = ch
	}
	m.mu.Unlock()

	for name, ch := range targets {
		select {
		case ch <- build(name):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Memory) Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error {
	if err := validateConsume(ctx, topic, handler); err != nil {
		return err
	}
	co := newConsumeOptions(opts...)

	ch, err := m.join(topic, co.group)
	if err != nil {
		return err
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
				case msg := <-ch:
					dispatch(ctx, DriverMemory, msg, handler, co.autoAck)
				}
			}
		}()
	}
	wg.Wait()

	return ctx.Err()
}

func (m *Memory) join(topic, group string) (chan *memoryMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, io.ErrClosedPipe
	}
	groups, ok := m.topics[topic]
	if !ok {
		groups = map[string]chan *memoryMessage{}
		m.topics[topic] = groups
	}
	if ch, ok := groups[group]; ok {
		return ch, nil
	}

	ch := make(chan *memoryMessage, memoryBuffer)
	groups[group] = ch
	for _, msg := range m.pending[topic] {
		msg.group = group
		select {
		case ch <- msg:
		default:
			slog.Warn("pending message dropped, buffer full", "topic", topic, "message_id", msg.id)
		}
	}
	delete(m.pending, topic)
	return ch, nil
}

// redeliver puts msg back on its group queue with a bumped attempt count.
func (m *Memory) redeliver(msg *memoryMessage) {
	if msg.attempts >= memoryMaxAttempts {
		slog.Warn("message dropped after max attempts", "topic", msg.topic, "message_id", msg.id, "attempts", msg.attempts)
		return
	}

	m.mu.Lock()
	ch, ok := m.topics[msg.topic][msg.group]
	closed := m.closed
	m.mu.Unlock()
	if !ok || closed {
		return
	}

	next := &memoryMessage{bus: m, id: msg.id, topic: msg.topic, group: msg.group, out: msg.out, at: msg.at, attempts: msg.attempts + 1}
	go func() { ch <- next }()
}

type memoryMessage struct {
	once
	bus      *Memory
	id       string
	topic    string
	group    string
	out      OutgoingMessage
	at       time.Time
	attempts int
}

func (m *memoryMessage) ID() string                 { return m.id }
func (m *memoryMessage) Topic() string              { return m.topic }
func (m *memoryMessage) Body() []byte               { return m.out.Body }
func (m *memoryMessage) Key() []byte                { return m.out.Key }
func (m *memoryMessage) Headers() map[string]string { return m.out.Headers }
func (m *memoryMessage) Timestamp() time.Time       { return m.at }
func (m *memoryMessage) Attempts() int              { return m.attempts }

func (m *memoryMessage) Ack(context.Context) error {
	m.first()
	return nil
}

func (m *memoryMessage) Nack(context.Context) error {
	if m.first() {
		m.bus.redeliver(m)
	}
	return nil
}
