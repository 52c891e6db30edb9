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

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type recordSender struct {
	got []sms.Message
	err error
}

func (r *recordSender) Send(_ context.Context, msg sms.Message) error {
	r.got = append(r.got, msg)
	return r.err
}

func TestDirect_Send(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		sender := &recordSender{}
		sut := NewDirect(sender, fixedID("d-1"), instrument.NewNoop())

		require.NoError(t, sut.Send(context.Background(), "+15550001111", "654321"))
		require.Len(t, sender.got, 1)
		assert.Equal(t, "+15550001111", sender.got[0].To)
		assert.Equal(t, "d-1", sender.got[0].Reference)
		assert.Contains(t, sender.got[0].Body, "654321")
	})

	t.Run("provider error", func(t *testing.T) {
		sender := &recordSender{err: errors.New("provider down")}
		sut := NewDirect(sender, fixedID("d-2"), instrument.NewNoop())

		assert.EqualError(t, sut.Send(context.Background(), "+15550001111", "654321"), "provider down")
	})
}
