package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidState is returned when a signed value fails verification.
var ErrInvalidState = errors.New("invalid signed state")

// NewNonce returns a URL-safe random string of n bytes of entropy.
func NewNonce(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Sign returns "<value>.<mac>" using HMAC-SHA256 over value.
func Sign(secret, value string) string {
	return value + "." + mac(secret, value)
}

// Verify checks a Sign output and returns the original value.
func Verify(secret, signed string) (string, error) {
	idx := strings.LastIndexByte(signed, '.')
	if idx <= 0 || secret == "" {
		return "", ErrInvalidState
	}
	value, sig := signed[:idx], signed[idx+1:]
	if !hmac.Equal([]byte(sig), []byte(mac(secret, value))) {
		return "", ErrInvalidState
	}
	return value, nil
}

func mac(secret, value string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
