// clientkey.go generates client key tokens. The token doubles as the tenant
// identifier once consumed, so it is stored verbatim — uniqueness and entropy
// matter, secrecy-at-rest is provided by the single-use latch, not hashing.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// ClientKeyBytes is the entropy of the random part of a client key.
const ClientKeyBytes = 24

// GenerateClientKey creates a new random client key token with the given
// prefix (e.g. "wdk_"). The token is shown to the admin once and distributed
// to the tenant out-of-band.
func GenerateClientKey(prefix string) (string, error) {
	randomBytes := make([]byte, ClientKeyBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(randomBytes), nil
}
