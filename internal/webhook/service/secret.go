package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// secretBytes is the entropy of a generated webhook secret.
const secretBytes = 32

// SecretGenerator produces webhook signing secrets.
type SecretGenerator interface {
	Generate() (string, error)
}

// randomSecretGenerator implements SecretGenerator with crypto/rand.
type randomSecretGenerator struct{}

// NewSecretGenerator creates a new SecretGenerator.
func NewSecretGenerator() SecretGenerator {
	return &randomSecretGenerator{}
}

// Generate returns a new URL-safe random secret.
func (g *randomSecretGenerator) Generate() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
