// Package credential hashes and compares message passwords.
package credential

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for message passwords.
const DefaultCost = 10

// Verifier produces one-way password hashes and checks plaintexts against
// them. Implementations must never store or cache the plaintext.
type Verifier interface {
	Hash(plain string) (string, error)
	Compare(plain, hash string) bool
}

// Bcrypt is a Verifier backed by golang.org/x/crypto/bcrypt.
type Bcrypt struct {
	cost int
}

var _ Verifier = (*Bcrypt)(nil)

// NewBcrypt creates a bcrypt verifier. A cost outside bcrypt's accepted
// range falls back to DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Hash returns the salted bcrypt hash of plain.
func (b *Bcrypt) Hash(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(h), nil
}

// Compare reports whether plain matches hash. A malformed hash never
// matches.
func (b *Bcrypt) Compare(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
