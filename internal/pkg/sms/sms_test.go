package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSend(t *testing.T) {
	var got httpPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s, err := NewHTTP(HTTPConfig{URL: srv.URL, APIKey: "key", Sender: "GOMFA"})
	require.NoError(t, err)

	err = s.Send(context.Background(), Message{To: "+628123456789", Body: "Your code is 123456", Reference: "r1"})
	require.NoError(t, err)
	assert.Equal(t, httpPayload{To: "+628123456789", From: "GOMFA", Body: "Your code is 123456", Reference: "r1"}, got)
}

func TestHTTPSendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewHTTP(HTTPConfig{URL: srv.URL, MaxRetries: 3})
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), Message{To: "+628123456789", Body: "hi"}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPSendDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad number", http.StatusBadRequest)
	}))
	defer srv.Close()

	s, err := NewHTTP(HTTPConfig{URL: srv.URL, MaxRetries: 3})
	require.NoError(t, err)

	err = s.Send(context.Background(), Message{To: "+628123456789", Body: "hi"})
	assert.ErrorContains(t, err, "status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPSendTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	s, err := NewHTTP(HTTPConfig{URL: srv.URL, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	assert.Error(t, s.Send(context.Background(), Message{To: "+628123456789", Body: "hi"}))
}

func TestNew(t *testing.T) {
	s, err := New("log", HTTPConfig{})
	require.NoError(t, err)
	assert.NoError(t, s.Send(context.Background(), Message{To: "+628123456789", Body: "hi"}))
	assert.ErrorIs(t, s.Send(context.Background(), Message{Body: "hi"}), ErrNoRecipient)
	assert.ErrorIs(t, s.Send(context.Background(), Message{To: "+62812"}), ErrEmptyBody)

	_, err = New("http", HTTPConfig{})
	assert.ErrorIs(t, err, ErrHTTPURLRequired)

	_, err = New("pigeon", HTTPConfig{})
	assert.Error(t, err)
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "+62********89", MaskPhone("+628123456789"))
	assert.Equal(t, "***", MaskPhone("123"))
}
