package domain

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// =============================================================================
// Identifiers
// =============================================================================

// tokenAlphabet must hold exactly 64 URL-safe symbols.
const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// PublicIDLength is the length of the shareable form identifier.
const PublicIDLength = 12

// NewID returns a new entity identifier.
func NewID() string {
	return uuid.New().String()
}

// NewPublicID returns a random identifier for a form's public link.
func NewPublicID() string {
	return RandomToken(PublicIDLength)
}

// RandomToken returns n random URL-safe characters.
func RandomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails when the OS entropy source is unusable.
		panic("domain: reading random bytes: " + err.Error())
	}
	for i := range b {
		b[i] = tokenAlphabet[b[i]&63]
	}
	return string(b)
}

// IsToken reports whether s is made only of RandomToken characters.
func IsToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
