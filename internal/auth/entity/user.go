package entity

import (
	"strings"
	"time"
)

// FactorKind is the second factor a user enrolled.
type FactorKind string

const (
	FactorNone FactorKind = "none"
	FactorSMS  FactorKind = "sms"
	FactorTOTP FactorKind = "totp"
)

func (f FactorKind) String() string { return string(f) }

// FactorKindFromString maps client text to a FactorKind, falling back to none.
func FactorKindFromString(s string) FactorKind {
	switch FactorKind(strings.ToLower(strings.TrimSpace(s))) {
	case FactorSMS:
		return FactorSMS
	case FactorTOTP:
		return FactorTOTP
	default:
		return FactorNone
	}
}

// User is a credential store record. TOTPSecret holds the sealed secret.
type User struct {
	ID             int64
	Email          string
	FirstName      string
	Phone          string
	PasswordHash   string
	PasswordAlgo   string
	Factor         FactorKind
	TOTPSecret     []byte
	FactorVerified bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUser carries what registration writes.
type NewUser struct {
	ID           int64
	Email        string
	FirstName    string
	Phone        string
	PasswordHash string
	PasswordAlgo string
	Factor       FactorKind
	TOTPSecret   []byte
}
