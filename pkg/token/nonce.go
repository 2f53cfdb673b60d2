package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// DefaultNonceSize is 32 bytes (256 bits of entropy).
const DefaultNonceSize = 32

// GenerateNonce creates a cryptographically secure random nonce,
// base64url-encoded without padding.
func GenerateNonce(size int) (string, error) {
	if size <= 0 {
		size = DefaultNonceSize
	}

	bytes := make([]byte, size)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
