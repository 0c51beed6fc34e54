package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// SHA256Hex returns the hex-encoded SHA-256 digest of s.
//
// Used to derive storage keys for opaque secrets (refresh tokens, backup
// codes) so the raw value never reaches a store.
//
// Example usage:
//
//	key := "refresh:" + utils.SHA256Hex(refreshToken)
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// RandomToken returns n bytes from crypto/rand encoded as unpadded
// base64url. Suitable for bearer secrets and identifiers that must be
// unguessable.
func RandomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("error reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// RandomString returns a string of length n whose characters are drawn
// uniformly from alphabet using crypto/rand.
func RandomString(n int, alphabet string) (string, error) {
	if len(alphabet) == 0 || len(alphabet) > 256 {
		return "", fmt.Errorf("invalid alphabet length %d", len(alphabet))
	}

	// rejection sampling keeps the distribution uniform
	limit := 256 - 256%len(alphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("error reading random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
