// Package auth provides authentication primitives for the platform: session JWT
// creation/verification, the role capability table, and invitation token
// generation/validation with bcrypt hashing. Invitation tokens are shown once in the
// invitation email and only their hash is stored; lookup goes through the stored
// display prefix, then a bcrypt comparison against each candidate row.
// See internal/middleware/auth.go for the request-time authentication logic.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// InvitationTokenPrefix marks invitation tokens so they are recognizable in
	// logs and support tickets without being guessable.
	InvitationTokenPrefix = "cdi"

	// InvitationTokenLength is the length of the random part of the token in bytes
	InvitationTokenLength = 32

	// TokenPrefixLength is the number of leading characters stored alongside the
	// hash to narrow the candidate set at validation time
	TokenPrefixLength = 10

	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 12
)

// GenerateInvitationToken creates a new random invitation token.
// Returns: full token (to email once), bcrypt hash (to store), lookup prefix.
func GenerateInvitationToken() (token string, hash string, prefix string, err error) {
	randomBytes := make([]byte, InvitationTokenLength)
	_, err = rand.Read(randomBytes)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// URL-safe so the token can ride in an invitation link path segment
	randomPart := base64.RawURLEncoding.EncodeToString(randomBytes)

	fullToken := fmt.Sprintf("%s_%s", InvitationTokenPrefix, randomPart)

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(fullToken), BcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to hash invitation token: %w", err)
	}

	lookupPrefix := fullToken
	if len(fullToken) > TokenPrefixLength {
		lookupPrefix = fullToken[:TokenPrefixLength]
	}

	return fullToken, string(hashBytes), lookupPrefix, nil
}

// ValidateInvitationToken checks if a provided token matches the stored hash
func ValidateInvitationToken(providedToken, storedHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(providedToken))
	return err == nil
}

// TokenLookupPrefix returns the lookup prefix for a presented token, used to
// fetch candidate invitation rows before the bcrypt comparison.
func TokenLookupPrefix(token string) string {
	if len(token) > TokenPrefixLength {
		return token[:TokenPrefixLength]
	}
	return token
}

// LooksLikeInvitationToken reports whether a string has the invitation token shape.
// Used for cheap rejection before any database work.
func LooksLikeInvitationToken(token string) bool {
	return strings.HasPrefix(token, InvitationTokenPrefix+"_") &&
		len(token) > len(InvitationTokenPrefix)+1
}
