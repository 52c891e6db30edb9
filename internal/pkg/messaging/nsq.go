package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nsqio/go-nsq"
)

// NSQConfig configures the NSQ driver.
type NSQConfig struct {
	// ProducerAddr is the nsqd TCP address used for publishing.
	ProducerAddr string
	// ConsumerLookupdAddrs wins over ConsumerNSQDAddrs when both are set.
	ConsumerNSQDAddrs    []string
	ConsumerLookupdAddrs []string
	ProducerConfig       *nsq.Config
	ConsumerConfig       *nsq.Config
}

// NSQ implements Messaging on go-nsq. NSQ frames carry no headers, so
// headers and key ride in a JSON envelope around the body.
type NSQ struct {
	cfg      NSQConfig
	producer *nsq.Producer

	mu        sync.Mutex
	closed    bool
	consumers map[*nsq.Consumer]struct{}
}

type nsqEnvelope struct {
	Key     []byte            `json:"k,omitempty"`
	Headers map[string]string `json:"h,omitempty"`
	Body    []byte            `json:"b"`
}

// NewNSQ builds an NSQ driver; the producer is created only with ProducerAddr.
func NewNSQ(cfg NSQConfig) (*NSQ, error) {
	n := &NSQ{cfg: cfg, consumers: map[*nsq.Consumer]struct{}{}}

	if cfg.ProducerAddr != "" {
		pcfg := cfg.ProducerConfig
		if pcfg == nil {
			pcfg = nsq.NewConfig()
		}
		p, err := nsq.NewProducer(cfg.ProducerAddr, pcfg)
		if err != nil {
			return nil, fmt.Errorf("messaging: nsq producer: %w", err)
		}
		p.SetLoggerLevel(nsq.LogLevelError)
		n.producer = p
	}

	return n, nil
}

func (n *NSQ) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	consumers := n.consumers
	n.consumers = nil
	n.mu.Unlock()

	for c := range consumers {
		c.Stop()
		<-c.StopChan
	}
	if n.producer != nil {
		n.producer.Stop()
	}
	return nil
}

func (n *NSQ) Publish(ctx context.Context, topic string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if topic == "" {
		return PublishResult{}, ErrTopicRequired
	}
	if n.producer == nil {
		return PublishResult{}, errors.New("messaging: nsq producer address is required")
	}

	body, err := json.Marshal(nsqEnvelope{Key: msg.Key, Headers: msg.Headers, Body: msg.Body})
	if err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nsq envelope: %w", err)
	}

	if msg.Delay > 0 {
		err = n.producer.DeferredPublish(topic, msg.Delay, body)
	} else {
		err = n.producer.Publish(topic, body)
	}
	if err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nsq publish: %w", err)
	}

	return PublishResult{Topic: topic, Timestamp: time.Now()}, nil
}

func (n *NSQ) Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error {
	if err := validateConsume(ctx, topic, handler); err != nil {
		return err
	}
	co := newConsumeOptions(opts...)
	if co.group == "" {
		return ErrGroupRequired
	}

	ccfg := nsq.NewConfig()
	if n.cfg.ConsumerConfig != nil {
		*ccfg = *n.cfg.ConsumerConfig
	}
	ccfg.MaxInFlight = co.maxInFlight

	consumer, err := nsq.NewConsumer(topic, co.group, ccfg)
	if err != nil {
		return fmt.Errorf("messaging: nsq consumer: %w", err)
	}
	consumer.SetLoggerLevel(nsq.LogLevelError)
	consumer.AddConcurrentHandlers(nsq.HandlerFunc(func(m *nsq.Message) error {
		m.DisableAutoResponse()
		dispatch(ctx, DriverNSQ, newNSQMessage(topic, m), handler, co.autoAck)
		return nil
	}), co.concurrency)

	if err := n.track(consumer); err != nil {
		return err
	}
	defer n.untrack(consumer)

	if len(n.cfg.ConsumerLookupdAddrs) > 0 {
		err = consumer.ConnectToNSQLookupds(n.cfg.ConsumerLookupdAddrs)
	} else {
		err = consumer.ConnectToNSQDs(n.cfg.ConsumerNSQDAddrs)
	}
	if err != nil {
		return fmt.Errorf("messaging: nsq connect: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-consumer.StopChan:
		return nil
	}
}

func (n *NSQ) track(c *nsq.Consumer) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return io.ErrClosedPipe
	}
	n.consumers[c] = struct{}{}
	return nil
}

func (n *NSQ) untrack(c *nsq.Consumer) {
	n.mu.Lock()
	_, owned := n.consumers[c]
	delete(n.consumers, c)
	n.mu.Unlock()

	if owned {
		c.Stop()
		<-c.StopChan
	}
}

type nsqMessage struct {
	once
	topic string
	msg   *nsq.Message
	env   nsqEnvelope
}

// newNSQMessage unwraps the envelope; foreign producers' raw bodies pass through.
func newNSQMessage(topic string, m *nsq.Message) *nsqMessage {
	nm := &nsqMessage{topic: topic, msg: m}
	if err := json.Unmarshal(m.Body, &nm.env); err != nil || nm.env.Body == nil {
		nm.env = nsqEnvelope{Body: m.Body}
	}
	return nm
}

func (m *nsqMessage) ID() string                 { return fmt.Sprintf("%x", m.msg.ID) }
func (m *nsqMessage) Topic() string              { return m.topic }
func (m *nsqMessage) Body() []byte               { return m.env.Body }
func (m *nsqMessage) Key() []byte                { return m.env.Key }
func (m *nsqMessage) Headers() map[string]string { return m.env.Headers }
func (m *nsqMessage) Timestamp() time.Time       { return time.Unix(0, m.msg.Timestamp) }
func (m *nsqMessage) Attempts() int              { return int(m.msg.Attempts) }

func (m *nsqMessage) Ack(context.Context) error {
	if m.first() {
		m.msg.Finish()
	}
	return nil
}

func (m *nsqMessage) Nack(context.Context) error {
	if m.first() {
		m.msg.Requeue(-1)
	}
	return nil
}
