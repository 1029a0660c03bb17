// Package token issues and checks the opaque credentials of the system:
// per (user, ICU) update tokens and external-client access keys.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/icubam/icubam/internal/domain/access"
)

// updateTokenBytes yields access.UpdateTokenLength hex characters.
const updateTokenBytes = access.UpdateTokenLength / 2

type TokenGenerator interface {
	Generate() (plainToken string, hash string, err error)
	Hash(plainToken string) string
	Verify(plainToken, hash string) bool
}

type tokenGenerator struct{}

func NewTokenGenerator() TokenGenerator {
	return &tokenGenerator{}
}

// Generate returns a fresh 128-bit hex token and its sha256 digest.
func (g *tokenGenerator) Generate() (string, string, error) {
	randomBytes := make([]byte, updateTokenBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	plainToken := hex.EncodeToString(randomBytes)
	return plainToken, g.Hash(plainToken), nil
}

func (g *tokenGenerator) Hash(plainToken string) string {
	hash := sha256.Sum256([]byte(plainToken))
	return hex.EncodeToString(hash[:])
}

func (g *tokenGenerator) Verify(plainToken, hash string) bool {
	computedHash := g.Hash(plainToken)
	return subtle.ConstantTimeCompare([]byte(computedHash), []byte(hash)) == 1
}

// LooksLikeUpdateToken reports whether s has the fixed update-token length.
// Anything else is treated as a signed session token.
func LooksLikeUpdateToken(s string) bool {
	return len(s) == access.UpdateTokenLength
}
