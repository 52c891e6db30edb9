package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/gomfa/internal/notification/entity"
	"github.com/shandysiswandi/gomfa/internal/pkg/config"
	"github.com/shandysiswandi/gomfa/internal/pkg/idempotency"
	"github.com/shandysiswandi/gomfa/internal/pkg/instrument"
	"github.com/shandysiswandi/gomfa/internal/pkg/sms"
	"github.com/shandysiswandi/gomfa/internal/pkg/uid"
	"github.com/shandysiswandi/gomfa/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = []byte(`
modules:
  notification:
    sms:
      max_attempts: 3
      idempotency_ttl_seconds: 600
`)

type fakeRepoDB struct {
	mu      sync.Mutex
	records []entity.Delivery
	err     error
}

func (f *fakeRepoDB) RecordDelivery(_ context.Context, d entity.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, d)
	return f.err
}

type fakeRepoSMS struct {
	mu   sync.Mutex
	sent []sms.Message
	err  error
}

func (f *fakeRepoSMS) Send(_ context.Context, msg sms.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fixture struct {
	uc  *Usecase
	db  *fakeRepoDB
	sms *fakeRepoSMS
	mr  *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", testConfig)
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	snowflake, err := uid.NewSnowflake(1)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{db: &fakeRepoDB{}, sms: &fakeRepoSMS{}, mr: mr}
	f.uc = NewNotification(Dependency{
		RepoDB:      f.db,
		RepoSMS:     f.sms,
		Idempotency: idempotency.New(client),
		Config:      cfg,
		UID:         snowflake,
		Validator:   v,
		Instrument:  instrument.NewNoop(),
	})

	return f
}

func validInput() ConsumeOTPDeliveryInput {
	return ConsumeOTPDeliveryInput{
		DeliveryID:  "d-1",
		PhoneNumber: "+15551234567",
		Code:        "123456",
		Attempts:    1,
	}
}

func TestConsumeOTPDelivery_SendsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.uc.ConsumeOTPDelivery(ctx, validInput()))
	require.NoError(t, f.uc.ConsumeOTPDelivery(ctx, validInput()))

	require.Len(t, f.sms.sent, 1)
	assert.Equal(t, "+15551234567", f.sms.sent[0].To)
	assert.Equal(t, "d-1", f.sms.sent[0].Reference)
	assert.Contains(t, f.sms.sent[0].Body, "123456")

	require.Len(t, f.db.records, 1)
	assert.Equal(t, entity.DeliverySent, f.db.records[0].Status)
	assert.Equal(t, "d-1", f.db.records[0].DeliveryID)
	assert.NotContains(t, f.db.records[0].PhoneMasked, "1234567")
	assert.NotZero(t, f.db.records[0].ID)

	assert.Equal(t, string(idempotency.StateCompleted), redisValue(t, f.mr, "idempotency:sms:d-1"))
}

func TestConsumeOTPDelivery_FailureIsRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sms.err = errors.New("provider down")

	in := validInput()
	err := f.uc.ConsumeOTPDelivery(ctx, in)
	assert.ErrorIs(t, err, f.sms.err)
	assert.False(t, f.mr.Exists("idempotency:sms:d-1"))

	require.Len(t, f.db.records, 1)
	assert.Equal(t, entity.DeliveryFailed, f.db.records[0].Status)
	assert.Equal(t, "provider down", f.db.records[0].Error)

	f.sms.err = nil
	in.Attempts = 2
	require.NoError(t, f.uc.ConsumeOTPDelivery(ctx, in))
	assert.Len(t, f.sms.sent, 1)
}

func TestConsumeOTPDelivery_DropsAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	f.sms.err = errors.New("provider down")

	in := validInput()
	in.Attempts = 3

	assert.NoError(t, f.uc.ConsumeOTPDelivery(context.Background(), in))
	assert.Empty(t, f.sms.sent)
}

func TestConsumeOTPDelivery_RecordFailureDoesNotResend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.db.err = errors.New("db down")

	require.NoError(t, f.uc.ConsumeOTPDelivery(ctx, validInput()))
	require.NoError(t, f.uc.ConsumeOTPDelivery(ctx, validInput()))

	assert.Len(t, f.sms.sent, 1)
}

func TestConsumeOTPDelivery_InProgressElsewhere(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mr.Set("idempotency:sms:d-1", string(idempotency.StateInProgress)))

	err := f.uc.ConsumeOTPDelivery(context.Background(), validInput())
	assert.ErrorIs(t, err, idempotency.ErrAlreadyInProgress)
	assert.Empty(t, f.sms.sent)
}

func TestConsumeOTPDelivery_InvalidPayloadIsDropped(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *ConsumeOTPDeliveryInput)
	}{
		{name: "missing delivery id", mutate: func(in *ConsumeOTPDeliveryInput) { in.DeliveryID = "" }},
		{name: "bad phone", mutate: func(in *ConsumeOTPDeliveryInput) { in.PhoneNumber = "0812" }},
		{name: "bad code", mutate: func(in *ConsumeOTPDeliveryInput) { in.Code = "12ab" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := validInput()
			tt.mutate(&in)

			assert.NoError(t, f.uc.ConsumeOTPDelivery(context.Background(), in))
			assert.Empty(t, f.sms.sent)
			assert.Empty(t, f.db.records)
		})
	}
}

func redisValue(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
