package mq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shandysiswandi/gomfa/internal/pkg/instrument"
	"github.com/shandysiswandi/gomfa/internal/pkg/messaging"
	"github.com/shandysiswandi/gomfa/internal/shared/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

func TestMessaging_Send(t *testing.T) {
	bus := messaging.NewMemory()
	t.Cleanup(func() { _ = bus.Close() })

	got := make(chan messaging.Message, 1)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = bus.Consume(ctx, event.OTPDeliveryDestination, func(_ context.Context, msg messaging.Message) error {
			got <- msg
			return nil
		}, messaging.WithGroup(event.OTPDeliveryConsumerNotification))
	}()

	sut := NewMessaging(bus, fixedID("d-1"), instrument.NewNoop())
	err := sut.Send(instrument.SetCorrelationID(context.Background(), "corr-1"), "+15550001111", "123456")
	require.NoError(t, err)

	select {
	case msg := <-got:
		var body event.OTPDeliveryMessage
		require.NoError(t, json.Unmarshal(msg.Body(), &body))
		assert.Equal(t, event.OTPDeliveryMessage{DeliveryID: "d-1", PhoneNumber: "+15550001111", Code: "123456"}, body)
		assert.Equal(t, "corr-1", messaging.Header(msg, keyOfCorrelationID))
		assert.Equal(t, []byte("+15550001111"), msg.Key())
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}
}

func TestMessaging_SendClosed(t *testing.T) {
	bus := messaging.NewMemory()
	require.NoError(t, bus.Close())

	sut := NewMessaging(bus, fixedID("d-2"), instrument.NewNoop())
	assert.Error(t, sut.Send(context.Background(), "+15550001111", "123456"))
}
