package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const DefaultCost = 12

// BcryptHasher hashes and checks account passwords.
type BcryptHasher struct {
	Cost int
}

func NewHasher() BcryptHasher { return BcryptHasher{Cost: DefaultCost} }

func (h BcryptHasher) Hash(plain string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(b), nil
}

// Verify reports whether plain produced hash. A malformed hash is a mismatch.
func (h BcryptHasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
