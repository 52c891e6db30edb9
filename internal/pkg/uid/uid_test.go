package uid

import (
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomToken(t *testing.T) {
	gen := NewRandomToken(32)
	seen := make(map[string]struct{})

	for range 100 {
		tok, err := gen.Token()
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(tok)
		require.NoError(t, err)
		assert.Len(t, raw, 32)

		_, dup := seen[tok]
		assert.False(t, dup)
		seen[tok] = struct{}{}
	}
}

func TestRandomTokenMinimumSize(t *testing.T) {
	tok, err := NewRandomToken(4).Token()
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestSnowflake(t *testing.T) {
	_, err := NewSnowflake(4096)
	assert.Error(t, err)

	sf, err := NewSnowflake(1)
	require.NoError(t, err)

	a, b := sf.Generate(), sf.Generate()
	assert.Positive(t, a)
	assert.Greater(t, b, a)
}

func TestUUID(t *testing.T) {
	id, err := uuid.Parse(NewUUID().Generate())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}
