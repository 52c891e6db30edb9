package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/gomfa/internal/notification/usecase"
	"github.com/shandysiswandi/gomfa/internal/pkg/config"
	"github.com/shandysiswandi/gomfa/internal/pkg/goroutine"
	"github.com/shandysiswandi/gomfa/internal/pkg/instrument"
	"github.com/shandysiswandi/gomfa/internal/pkg/messaging"
	"github.com/shandysiswandi/gomfa/internal/pkg/uid"
	"github.com/shandysiswandi/gomfa/internal/shared/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUC struct {
	mu    sync.Mutex
	calls []usecase.ConsumeOTPDeliveryInput
	cIDs  []string
	err   error
}

func (f *fakeUC) ConsumeOTPDelivery(ctx context.Context, in usecase.ConsumeOTPDeliveryInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in)
	f.cIDs = append(f.cIDs, instrument.GetCorrelationID(ctx))
	return f.err
}

func (f *fakeUC) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeMessage struct {
	body     []byte
	headers  map[string]string
	attempts int
}

func (m *fakeMessage) ID() string                 { return "m-1" }
func (m *fakeMessage) Topic() string              { return event.OTPDeliveryDestination }
func (m *fakeMessage) Body() []byte               { return m.body }
func (m *fakeMessage) Key() []byte                { return nil }
func (m *fakeMessage) Headers() map[string]string { return m.headers }
func (m *fakeMessage) Timestamp() time.Time       { return time.Time{} }
func (m *fakeMessage) Attempts() int              { return m.attempts }
func (m *fakeMessage) Ack(context.Context) error  { return nil }
func (m *fakeMessage) Nack(context.Context) error { return nil }

func otpBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(event.OTPDeliveryMessage{DeliveryID: "d-1", PhoneNumber: "+15551234567", Code: "654321"})
	require.NoError(t, err)
	return body
}

func TestMQHandler_OTPDelivery(t *testing.T) {
	tests := []struct {
		name      string
		msg       *fakeMessage
		ucErr     error
		wantErr   bool
		wantCalls int
		wantCID   string
	}{
		{
			name:      "forwards payload and correlation id",
			msg:       &fakeMessage{body: otpBody(t), headers: map[string]string{"cID": "corr-1"}, attempts: 2},
			wantCalls: 1,
			wantCID:   "corr-1",
		},
		{
			name:      "generates correlation id when absent",
			msg:       &fakeMessage{body: otpBody(t), attempts: 1},
			wantCalls: 1,
		},
		{
			name:      "malformed body is dropped",
			msg:       &fakeMessage{body: []byte("{"), attempts: 1},
			wantCalls: 0,
		},
		{
			name:      "usecase error is returned for redelivery",
			msg:       &fakeMessage{body: otpBody(t), attempts: 1},
			ucErr:     errors.New("provider down"),
			wantErr:   true,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &fakeUC{err: tt.ucErr}
			h := &MQHandler{uc: uc, uuid: uid.NewUUID(), ins: instrument.NewNoop()}

			err := h.OTPDelivery(context.Background(), tt.msg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			require.Len(t, uc.calls, tt.wantCalls)
			if tt.wantCalls == 0 {
				return
			}

			assert.Equal(t, usecase.ConsumeOTPDeliveryInput{
				DeliveryID:  "d-1",
				PhoneNumber: "+15551234567",
				Code:        "654321",
				Attempts:    tt.msg.attempts,
			}, uc.calls[0])
			if tt.wantCID != "" {
				assert.Equal(t, tt.wantCID, uc.cIDs[0])
			} else {
				assert.NotEmpty(t, uc.cIDs[0])
			}
		})
	}
}

func TestRegisterMQConsumer(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte(`
modules:
  notification:
    concurrency: 2
    consumer_names:
      - `+event.OTPDeliveryConsumerNotification+`
`))
	require.NoError(t, err)

	bus := messaging.NewMemory()
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	routine := goroutine.NewManager(4)
	uc := &fakeUC{}

	RegisterMQConsumer(ctx, cfg, routine, bus, uid.NewUUID(), uc, instrument.NewNoop())

	_, err = bus.Publish(ctx, event.OTPDeliveryDestination, messaging.OutgoingMessage{
		Body:    otpBody(t),
		Headers: map[string]string{"cID": "corr-9"},
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return uc.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	_ = routine.Wait()
}

func TestRegisterMQConsumer_Disabled(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte("modules: {}"))
	require.NoError(t, err)

	bus := messaging.NewMemory()
	t.Cleanup(func() { _ = bus.Close() })

	routine := goroutine.NewManager(1)
	uc := &fakeUC{}

	RegisterMQConsumer(context.Background(), cfg, routine, bus, uid.NewUUID(), uc, instrument.NewNoop())

	_, err = bus.Publish(context.Background(), event.OTPDeliveryDestination, messaging.OutgoingMessage{Body: otpBody(t)})
	require.NoError(t, err)

	require.NoError(t, routine.Wait())
	assert.Zero(t, uc.count())
}
