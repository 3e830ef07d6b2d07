// Package apikey authenticates machine callers by comparing a presented key
// with a stored bcrypt hash.
package apikey

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

type BcryptKeyVerifier struct {
	hash []byte
}

// NewBcryptKeyVerifier returns nil when hash is empty, disabling key auth.
func NewBcryptKeyVerifier(hash string) *BcryptKeyVerifier {
	if hash == "" {
		return nil
	}
	return &BcryptKeyVerifier{hash: []byte(hash)}
}

func (v *BcryptKeyVerifier) Verify(key string) bool {
	if v == nil || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(v.hash, []byte(key)) == nil
}

// Hash produces the value stored in SCHEDULER_API_KEY_HASH.
func Hash(key string, cost int) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key cannot be empty")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash key: %w", err)
	}
	return string(hashed), nil
}

// Generate returns a random URL-safe key.
func Generate() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
