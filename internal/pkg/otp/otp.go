package otp

import (
	"bytes"
	"crypto/subtle"
	"encoding/base32"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// OTP is the TOTP contract used by the auth module.
type OTP interface {
	// Generate creates a base32 secret and its otpauth:// URI for accountName.
	Generate(accountName string) (secret string, uri string, err error)
	// Match reports whether code is valid at the given time, within skew
	// steps, and which time step it belongs to.
	Match(code, secret string, at time.Time) (step int64, ok bool)
	// Window is how long a single code stays acceptable, skew included.
	Window() time.Duration
	// GenerateCode returns the code for secret at the given time.
	GenerateCode(secret string, at time.Time) (string, error)
	// QRCode renders the provisioning URI for secret as a size x size PNG.
	QRCode(secret, accountName string, size int) ([]byte, error)
}

// TOTP implements OTP with SHA-1 and a fixed period.
type TOTP struct {
	issuer string
	period uint
	skew   uint
	digits otp.Digits
}

// NewTOTP builds a TOTP. Digits other than 6 or 8 fall back to 6, a zero
// period to 30 seconds. Skew is taken as is, so 0 accepts only the current step.
func NewTOTP(issuer string, period, skew uint, digits otp.Digits) *TOTP {
	if digits != otp.DigitsSix && digits != otp.DigitsEight {
		digits = otp.DigitsSix
	}
	if period == 0 {
		period = 30
	}
	return &TOTP{issuer: issuer, period: period, skew: skew, digits: digits}
}

func (o *TOTP) opts() totp.ValidateOpts {
	return totp.ValidateOpts{Period: o.period, Skew: o.skew, Digits: o.digits, Algorithm: otp.AlgorithmSHA1}
}

func (o *TOTP) key(accountName string, secret []byte) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      o.issuer,
		AccountName: accountName,
		Period:      o.period,
		SecretSize:  20,
		Secret:      secret,
		Digits:      o.digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
}

func (o *TOTP) Generate(accountName string) (secret string, uri string, err error) {
	key, err := o.key(accountName, nil)
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// Match walks the skew window oldest first and compares in constant time.
func (o *TOTP) Match(code, secret string, at time.Time) (int64, bool) {
	if len(code) != o.digits.Length() {
		return 0, false
	}

	period := int64(o.period)
	current := at.Unix() / period
	skew := int64(o.skew)
	for step := current - skew; step <= current+skew; step++ {
		want, err := totp.GenerateCodeCustom(secret, time.Unix(step*period, 0).UTC(), o.opts())
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return step, true
		}
	}
	return 0, false
}

func (o *TOTP) Window() time.Duration {
	return time.Duration(2*o.skew+1) * time.Duration(o.period) * time.Second
}

func (o *TOTP) GenerateCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, o.opts())
}

// QRCode rebuilds the key from the stored secret so the URI never has to be persisted.
func (o *TOTP) QRCode(secret, accountName string, size int) ([]byte, error) {
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	if err != nil {
		return nil, fmt.Errorf("otp: decode secret: %w", err)
	}

	key, err := o.key(accountName, raw)
	if err != nil {
		return nil, err
	}

	img, err := key.Image(size, size)
	if err != nil {
		return nil, fmt.Errorf("otp: render qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("otp: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
