// Package mfa seals second-factor secrets at rest.
//
// Ciphertexts are bound to a Scope through AES-GCM additional data, so a TOTP
// seed copied onto another user's row fails to decrypt.
package mfa

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// Purpose names what a sealed secret is used for.
type Purpose string

// PurposeTOTPSeed scopes encryption to authenticator seeds.
const PurposeTOTPSeed Purpose = "totp_seed"

// Scope binds a ciphertext to its owner and purpose.
type Scope struct {
	UserID  int64
	Purpose Purpose
}

// Encryptor seals and opens secrets for a scope.
type Encryptor interface {
	Encrypt(plaintext []byte, scope Scope) ([]byte, error)
	Decrypt(ciphertext []byte, scope Scope) ([]byte, error)
}

// KeyProvider returns the 32 byte AES key for a scope.
type KeyProvider interface {
	Key(scope Scope) ([]byte, error)
}

var (
	ErrEncryptorNotConfigured = errors.New("mfa: encryptor not configured")
	ErrPlaintextEmpty         = errors.New("mfa: plaintext is empty")
	ErrInvalidKeyLength       = errors.New("mfa: invalid key length")
	ErrCiphertextTooShort     = errors.New("mfa: ciphertext too short")
	ErrUnsupportedVersion     = errors.New("mfa: unsupported ciphertext version")
	ErrDecryptFailed          = errors.New("mfa: decrypt failed")
	ErrMissingStaticKey       = errors.New("mfa: missing static key")
)

// StaticKeyProvider returns one key for every scope.
type StaticKeyProvider struct {
	KeyBytes []byte
}

// NewStaticKeyProviderBase64 decodes a standard base64 key, as kept in configuration.
func NewStaticKeyProviderBase64(encoded string) (StaticKeyProvider, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return StaticKeyProvider{}, fmt.Errorf("mfa: decode key: %w", err)
	}
	if len(key) != aesKeyLen {
		return StaticKeyProvider{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeyLength, len(key), aesKeyLen)
	}
	return StaticKeyProvider{KeyBytes: key}, nil
}

// Key returns a copy of the key.
func (p StaticKeyProvider) Key(_ Scope) ([]byte, error) {
	if len(p.KeyBytes) == 0 {
		return nil, ErrMissingStaticKey
	}
	return append([]byte(nil), p.KeyBytes...), nil
}
