package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Coder mints numeric one-time codes.
type Coder interface {
	Code() (string, error)
}

// Numeric draws codes uniformly from [0, 10^digits) and zero pads them.
type Numeric struct {
	digits int
	max    *big.Int
}

// NewNumeric returns a generator of digits-long codes; digits outside 4..10 become 6.
func NewNumeric(digits int) *Numeric {
	if digits < 4 || digits > 10 {
		digits = 6
	}
	return &Numeric{digits: digits, max: new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)}
}

func (n *Numeric) Code() (string, error) {
	v, err := rand.Int(rand.Reader, n.max)
	if err != nil {
		return "", fmt.Errorf("otp: read random: %w", err)
	}
	return fmt.Sprintf("%0*d", n.digits, v.Int64()), nil
}

// Digits returns the code length.
func (n *Numeric) Digits() int {
	return n.digits
}
