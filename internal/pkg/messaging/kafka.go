package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka driver.
type KafkaConfig struct {
	Brokers []string
	Dialer  *kafka.Dialer
	// WriterConfig and ReaderConfig act as templates; Brokers, Topic and
	// GroupID are filled in per call.
	WriterConfig *kafka.WriterConfig
	ReaderConfig *kafka.ReaderConfig
}

// Kafka implements Messaging on segmentio/kafka-go.
type Kafka struct {
	cfg KafkaConfig

	mu      sync.Mutex
	closed  bool
	writers map[string]*kafka.Writer
	readers map[*kafka.Reader]struct{}
}

// NewKafka validates cfg and returns a Kafka driver. Connections are lazy.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("messaging: kafka brokers are required")
	}
	return &Kafka{
		cfg:     cfg,
		writers: map[string]*kafka.Writer{},
		readers: map[*kafka.Reader]struct{}{},
	}, nil
}

func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	writers, readers := k.writers, k.readers
	k.writers, k.readers = nil, nil
	k.mu.Unlock()

	var errs []error
	for _, w := range writers {
		errs = append(errs, w.Close())
	}
	for r := range readers {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}

func (k *Kafka) Publish(ctx context.Context, topic string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if topic == "" {
		return PublishResult{}, ErrTopicRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}

	w, err := k.writer(topic)
	if err != nil {
		return PublishResult{}, err
	}

	km := kafka.Message{Key: msg.Key, Value: msg.Body, Time: time.Now()}
	for key, val := range msg.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: key, Value: []byte(val)})
	}

	if err := w.WriteMessages(ctx, km); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: kafka publish: %w", err)
	}

	return PublishResult{Topic: topic, Timestamp: km.Time}, nil
}

func (k *Kafka) Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error {
	if err := validateConsume(ctx, topic, handler); err != nil {
		return err
	}
	co := newConsumeOptions(opts...)
	if co.group == "" {
		return ErrGroupRequired
	}

	reader, err := k.reader(topic, co.group)
	if err != nil {
		return err
	}
	defer k.dropReader(reader)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs := make(chan kafka.Message)
	var fetchErr error
	go func() {
		defer close(msgs)
		for {
			m, err := reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					fetchErr = err
				}
				return
			}
			select {
			case msgs <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range msgs {
				dispatch(ctx, DriverKafka, &kafkaMessage{reader: reader, msg: m}, handler, co.autoAck)
			}
		}()
	}
	wg.Wait()

	if fetchErr != nil {
		return fmt.Errorf("messaging: kafka consume: %w", fetchErr)
	}
	return ctx.Err()
}

func (k *Kafka) writer(topic string) (*kafka.Writer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, io.ErrClosedPipe
	}
	if w, ok := k.writers[topic]; ok {
		return w, nil
	}

	cfg := kafka.WriterConfig{}
	if k.cfg.WriterConfig != nil {
		cfg = *k.cfg.WriterConfig
	}
	cfg.Brokers = k.cfg.Brokers
	cfg.Topic = topic
	if cfg.Dialer == nil {
		cfg.Dialer = k.cfg.Dialer
	}
	if cfg.Balancer == nil {
		cfg.Balancer = &kafka.Hash{}
	}

	w := kafka.NewWriter(cfg)
	k.writers[topic] = w
	return w, nil
}

func (k *Kafka) reader(topic, group string) (*kafka.Reader, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, io.ErrClosedPipe
	}

	cfg := kafka.ReaderConfig{}
	if k.cfg.ReaderConfig != nil {
		cfg = *k.cfg.ReaderConfig
	}
	cfg.Brokers = k.cfg.Brokers
	cfg.Topic = topic
	cfg.GroupID = group
	if cfg.Dialer == nil {
		cfg.Dialer = k.cfg.Dialer
	}

	r := kafka.NewReader(cfg)
	k.readers[r] = struct{}{}
	return r, nil
}

func (k *Kafka) dropReader(r *kafka.Reader) {
	k.mu.Lock()
	_, owned := k.readers[r]
	delete(k.readers, r)
	k.mu.Unlock()

	if owned {
		_ = r.Close()
	}
}

type kafkaMessage struct {
	once
	reader *kafka.Reader
	msg    kafka.Message
}

func (m *kafkaMessage) ID() string {
	return fmt.Sprintf("%s/%d/%d", m.msg.Topic, m.msg.Partition, m.msg.Offset)
}

func (m *kafkaMessage) Topic() string        { return m.msg.Topic }
func (m *kafkaMessage) Body() []byte         { return m.msg.Value }
func (m *kafkaMessage) Key() []byte          { return m.msg.Key }
func (m *kafkaMessage) Timestamp() time.Time { return m.msg.Time }
func (m *kafkaMessage) Attempts() int        { return 1 }

func (m *kafkaMessage) Headers() map[string]string {
	if len(m.msg.Headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(m.msg.Headers))
	for _, h := range m.msg.Headers {
		if _, dup := out[h.Key]; !dup {
			out[h.Key] = string(h.Value)
		}
	}
	return out
}

func (m *kafkaMessage) Ack(ctx context.Context) error {
	if !m.first() {
		return nil
	}
	return m.reader.CommitMessages(ctx, m.msg)
}

// Nack leaves the offset uncommitted so the group redelivers after a rebalance.
func (m *kafkaMessage) Nack(context.Context) error {
	m.first()
	return nil
}
