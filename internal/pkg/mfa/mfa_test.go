package mfa

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{7}, 32)
}

func TestAESGCMRoundTripAndScope(t *testing.T) {
	enc := NewAESGCMEncryptor(StaticKeyProvider{KeyBytes: testKey()})
	scope := Scope{UserID: 42, Purpose: PurposeTOTPSeed}

	sealed, err := enc.Encrypt([]byte("JBSWY3DPEHPK3PXP"), scope)
	require.NoError(t, err)

	plain, err := enc.Decrypt(sealed, scope)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", string(plain))

	_, err = enc.Decrypt(sealed, Scope{UserID: 43, Purpose: PurposeTOTPSeed})
	assert.ErrorIs(t, err, ErrDecryptFailed)

	sealed[len(sealed)-1] ^= 0xff
	_, err = enc.Decrypt(sealed, scope)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestAESGCMErrors(t *testing.T) {
	enc := NewAESGCMEncryptor(StaticKeyProvider{KeyBytes: testKey()})

	_, err := enc.Encrypt(nil, Scope{})
	assert.ErrorIs(t, err, ErrPlaintextEmpty)

	_, err = enc.Decrypt([]byte{0, 1, 2}, Scope{})
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	_, err = enc.Decrypt(append([]byte{0, 9}, make([]byte, 30)...), Scope{})
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = NewAESGCMEncryptor(StaticKeyProvider{}).Encrypt([]byte("x"), Scope{})
	assert.ErrorIs(t, err, ErrMissingStaticKey)

	var nilEnc *AESGCMEncryptor
	_, err = nilEnc.Encrypt([]byte("x"), Scope{})
	assert.ErrorIs(t, err, ErrEncryptorNotConfigured)
}

func TestNewStaticKeyProviderBase64(t *testing.T) {
	p, err := NewStaticKeyProviderBase64(base64.StdEncoding.EncodeToString(testKey()))
	require.NoError(t, err)

	key, err := p.Key(Scope{})
	require.NoError(t, err)
	assert.Equal(t, testKey(), key)

	_, err = NewStaticKeyProviderBase64(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrInvalidKeyLength)

	_, err = NewStaticKeyProviderBase64("%%%")
	assert.Error(t, err)
}
