package hash

import (
	"errors"
	"fmt"
)

// Hash turns a secret into a storable digest and checks candidates against it.
type Hash interface {
	Hash(str string) ([]byte, error)
	Verify(hashed, str string) bool
}

// Algorithm tags stored next to a password digest.
const (
	AlgoBcrypt   = "bcrypt"
	AlgoArgon2id = "argon2id"
)

// ErrUnknownAlgorithm is returned when a tag has no registered hasher.
var ErrUnknownAlgorithm = errors.New("hash: unknown algorithm")

// Passwords hashes new passwords with the current algorithm and verifies
// stored ones with whichever algorithm produced them.
type Passwords struct {
	current string
	hashers map[string]Hash
	dummy   string
}

// NewPasswords builds a Passwords whose new digests use current. It also
// hashes a throwaway secret for Burn, so a broken hasher fails here.
func NewPasswords(current string, hashers map[string]Hash) (*Passwords, error) {
	h, ok := hashers[current]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, current)
	}

	dummy, err := h.Hash("gomfa-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("hash: dummy digest: %w", err)
	}
	return &Passwords{current: current, hashers: hashers, dummy: string(dummy)}, nil
}

// Hash returns the digest of plaintext and the tag of the algorithm used.
func (p *Passwords) Hash(plaintext string) (digest, algo string, err error) {
	b, err := p.hashers[p.current].Hash(plaintext)
	if err != nil {
		return "", "", err
	}
	return string(b), p.current, nil
}

// Verify reports whether plaintext matches digest. Unknown tags never match.
func (p *Passwords) Verify(algo, digest, plaintext string) bool {
	h, ok := p.hashers[algo]
	if !ok {
		return false
	}
	return h.Verify(digest, plaintext)
}

// Burn spends one verification with the current algorithm and discards the
// result. Callers use it when there is no account to verify against.
func (p *Passwords) Burn(plaintext string) {
	_ = p.hashers[p.current].Verify(p.dummy, plaintext)
}

// Stale reports whether a digest tagged algo should be rehashed.
func (p *Passwords) Stale(algo string) bool {
	return algo != p.current
}

// Current returns the tag used for new digests.
func (p *Passwords) Current() string {
	return p.current
}
