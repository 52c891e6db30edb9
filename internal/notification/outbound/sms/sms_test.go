package sms

import (
	"context"
	"errors"
	"testing"

	"github.com/shandysiswandi/gomfa/internal/pkg/instrument"
	"github.com/shandysiswandi/gomfa/internal/pkg/sms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	got []sms.Message
	err error
}

func (s *stubSender) Send(_ context.Context, msg sms.Message) error {
	s.got = append(s.got, msg)
	return s.err
}

func TestSMS_Send(t *testing.T) {
	msg := sms.Message{To: "+15550001111", Body: "code 123456", Reference: "d-1"}

	sender := &stubSender{}
	require.NoError(t, New(sender, instrument.NewNoop()).Send(context.Background(), msg))
	assert.Equal(t, []sms.Message{msg}, sender.got)

	boom := errors.New("gateway down")
	failing := &stubSender{err: boom}
	assert.ErrorIs(t, New(failing, instrument.NewNoop()).Send(context.Background(), msg), boom)
}
