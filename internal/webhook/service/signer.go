// Package service provides stateless webhook support services: payload
// signing and secret generation.
package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer computes and verifies payload signatures for webhook deliveries.
type Signer interface {
	// Sign returns the hex-encoded HMAC-SHA256 of payload under secret.
	// The signature covers the exact bytes transmitted on the wire.
	Sign(payload []byte, secret string) string
	// Verify recomputes the signature and compares it in constant time.
	Verify(payload []byte, signature, secret string) bool
}

// hmacSigner implements Signer with HMAC-SHA256.
type hmacSigner struct{}

// NewSigner creates a new Signer.
func NewSigner() Signer {
	return &hmacSigner{}
}

// Sign returns the hex-encoded HMAC-SHA256 of payload under secret.
func (s *hmacSigner) Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over payload and compares in constant time,
// so neither length nor content differences leak through timing.
func (s *hmacSigner) Verify(payload []byte, signature, secret string) bool {
	expected := s.Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
