package util

import (
	"crypto/rand"
	"encoding/hex"
)

// tokenByteLength sets the byte length of generated API tokens (32).
const tokenByteLength = 32

// GenerateToken returns 64 random hex characters for use as an API token.
//
// Returns:
//   - string: Random token.
func GenerateToken() string {
	buf := make([]byte, tokenByteLength)
	_, _ = rand.Read(buf)

	return hex.EncodeToString(buf)
}
