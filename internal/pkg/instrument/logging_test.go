package instrument

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(NewHandler(buf, "gomfa", "debug", []string{"password", "code", "token"}, nil))
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestHandlerMasksSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf)

	log.Info("request", "password", "hunter22", "body", `{"email":"a@b.c","code":"123456"}`,
		slog.Group("cookie", slog.String("token", "abc")))

	out := decode(t, &buf)
	assert.Equal(t, "***", out["password"])
	assert.JSONEq(t, `{"email":"a@b.c","code":"***"}`, out["body"].(string))
	assert.Equal(t, map[string]any{"token": "***"}, out["cookie"])
	assert.Equal(t, "gomfa", out["service"])
	assert.Equal(t, "INFO", out["severity"])
}

func TestHandlerMasksWithAttrsAndMaps(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf).With("token", "secret-token")

	log.Warn("map", "meta", map[string]string{"code": "999999", "phone": "+6281"})

	out := decode(t, &buf)
	assert.Equal(t, "***", out["token"])
	assert.Equal(t, map[string]any{"code": "***", "phone": "+6281"}, out["meta"])
}

func TestHandlerAddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf)

	ctx := SetCorrelationID(context.Background(), "cid-1")
	log.InfoContext(ctx, "hello")

	assert.Equal(t, "cid-1", decode(t, &buf)["_cID"])
	assert.Equal(t, "cid-1", GetCorrelationID(ctx))
	assert.Empty(t, GetCorrelationID(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelInfo, parseLevel("loud"))
}

func TestNewDisabledReturnsNoop(t *testing.T) {
	ins, err := New(context.Background(), &Config{ServiceName: "gomfa"})
	require.NoError(t, err)

	_, span := ins.Tracer("test").Start(context.Background(), "op")
	span.End()
	assert.NoError(t, ins.Shutdown(context.Background()))
}
