package entity

import "time"

// ChallengePurpose tells a login challenge from a first-time enrollment.
type ChallengePurpose string

const (
	ChallengePurposeLogin      ChallengePurpose = "login"
	ChallengePurposeEnrollment ChallengePurpose = "enrollment"
)

// Challenge is the single pending second-factor step of a user.
//
// Ref is the opaque client handle and is never stored; ID is its digest.
// SMS challenges keep only CodeHash over CodeSalt and the code.
type Challenge struct {
	ID         string
	Ref        string
	UserID     int64
	Factor     FactorKind
	Purpose    ChallengePurpose
	CodeHash   string
	CodeSalt   string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Attempts   int
	Resends    int
	LastSentAt time.Time
	// Lapsed is set by a store that tracks code validity on its own clock.
	Lapsed bool
}

// Exhausted reports whether no further submissions may succeed.
func (c *Challenge) Exhausted(maxAttempts int) bool {
	return c.Attempts >= maxAttempts
}

// Expired reports whether the store has lapsed the challenge or now is past
// its expiry. A lagging caller clock therefore never extends a code.
func (c *Challenge) Expired(now time.Time) bool {
	return c.Lapsed || now.After(c.ExpiresAt)
}
