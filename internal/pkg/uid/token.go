package uid

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// RandomToken produces base64url tokens from crypto/rand.
type RandomToken struct {
	size int
}

// NewRandomToken returns a generator of size random bytes; sizes under 16 (128 bits) are raised to 32.
func NewRandomToken(size int) *RandomToken {
	if size < 16 {
		size = 32
	}
	return &RandomToken{size: size}
}

// Token returns a fresh unpadded base64url token.
func (r *RandomToken) Token() (string, error) {
	buf := make([]byte, r.size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("uid: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
