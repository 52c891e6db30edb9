package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func consumeAsync(t *testing.T, bus Messaging, topic string, h Handler, opts ...ConsumeOption) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bus.Consume(ctx, topic, h, opts...)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestMemory_PublishConsume(t *testing.T) {
	bus := NewMemory()
	got := make(chan Message, 1)

	consumeAsync(t, bus, "otp", func(_ context.Context, msg Message) error {
		got <- msg
		return nil
	}, WithGroup("sms"), WithAutoAck(true))

	res, err := bus.Publish(context.Background(), "otp", OutgoingMessage{
		Body:    []byte(`{"x":1}`),
		Key:     []byte("user-1"),
		Headers: map[string]string{"cid": "abc"},
	})
	require.NoError(t, err)
	assert.Equal(t, "otp", res.Topic)

	select {
	case msg := <-got:
		assert.Equal(t, res.MessageID, msg.ID())
		assert.Equal(t, []byte(`{"x":1}`), msg.Body())
		assert.Equal(t, []byte("user-1"), msg.Key())
		assert.Equal(t, "abc", Header(msg, "cid"))
		assert.Equal(t, 1, msg.Attempts())
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestMemory_PendingBeforeSubscribe(t *testing.T) {
	bus := NewMemory()
	_, err := bus.Publish(context.Background(), "otp", OutgoingMessage{Body: []byte("early")})
	require.NoError(t, err)

	got := make(chan string, 1)
	consumeAsync(t, bus, "otp", func(_ context.Context, msg Message) error {
		got <- string(msg.Body())
		return nil
	}, WithGroup("sms"))

	select {
	case body := <-got:
		assert.Equal(t, "early", body)
	case <-time.After(2 * time.Second):
		t.Fatal("pending message not delivered")
	}
}

func TestMemory_NackRedelivers(t *testing.T) {
	bus := NewMemory()
	var calls atomic.Int32
	done := make(chan int, 1)

	consumeAsync(t, bus, "otp", func(_ context.Context, msg Message) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		done <- msg.Attempts()
		return nil
	}, WithGroup("sms"), WithAutoAck(true))

	_, err := bus.Publish(context.Background(), "otp", OutgoingMessage{Body: []byte("x")})
	require.NoError(t, err)

	select {
	case attempts := <-done:
		assert.Equal(t, 3, attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("message not redelivered")
	}
}

func TestMemory_PanicIsRecovered(t *testing.T) {
	bus := NewMemory()
	var calls atomic.Int32
	done := make(chan struct{})

	consumeAsync(t, bus, "otp", func(_ context.Context, _ Message) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		close(done)
		return nil
	}, WithAutoAck(true))

	_, err := bus.Publish(context.Background(), "otp", OutgoingMessage{Body: []byte("x")})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("panicking message was not redelivered")
	}
}

func TestMemory_ClosedAndValidation(t *testing.T) {
	bus := NewMemory()
	ctx := context.Background()

	_, err := bus.Publish(ctx, "", OutgoingMessage{})
	assert.ErrorIs(t, err, ErrTopicRequired)
	assert.ErrorIs(t, bus.Consume(ctx, "t", nil), ErrHandlerRequired)

	require.NoError(t, bus.Close())
	_, err = bus.Publish(ctx, "t", OutgoingMessage{})
	assert.Error(t, err)
}

func TestNewConsumeOptions(t *testing.T) {
	co := newConsumeOptions(WithConcurrency(0), nil)
	assert.Equal(t, 1, co.concurrency)
	assert.Equal(t, 1, co.maxInFlight)

	co = newConsumeOptions(WithConcurrency(4), WithMaxInFlight(2), WithGroup("g"), WithAutoAck(true))
	assert.Equal(t, 4, co.concurrency)
	assert.Equal(t, 4, co.maxInFlight)
	assert.Equal(t, "g", co.group)
	assert.True(t, co.autoAck)
}

func TestNewFromDriver(t *testing.T) {
	m, err := NewFromDriver(context.Background(), " memory ", FactoryOptions{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, m)

	_, err = NewFromDriver(context.Background(), "rabbit", FactoryOptions{})
	assert.ErrorIs(t, err, ErrUnknownDriver)

	_, err = NewFromDriver(context.Background(), DriverKafka, FactoryOptions{})
	assert.Error(t, err)
}

func TestKafka_RequiresGroup(t *testing.T) {
	k, err := NewKafka(KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	defer k.Close()

	err = k.Consume(context.Background(), "otp", func(context.Context, Message) error { return nil })
	assert.ErrorIs(t, err, ErrGroupRequired)

	_, err = k.Publish(context.Background(), "otp", OutgoingMessage{Delay: time.Second})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestNSQMessage_Envelope(t *testing.T) {
	body, err := json.Marshal(nsqEnvelope{Key: []byte("k"), Headers: map[string]string{"cid": "1"}, Body: []byte("payload")})
	require.NoError(t, err)

	var id nsq.MessageID
	copy(id[:], "0123456789abcdef")
	msg := newNSQMessage("otp", nsq.NewMessage(id, body))
	assert.Equal(t, []byte("payload"), msg.Body())
	assert.Equal(t, []byte("k"), msg.Key())
	assert.Equal(t, "1", msg.Headers()["cid"])

	raw := newNSQMessage("otp", nsq.NewMessage(id, []byte("not json")))
	assert.Equal(t, []byte("not json"), raw.Body())
	assert.Nil(t, raw.Headers())
}
