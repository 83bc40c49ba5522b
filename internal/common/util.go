package common

import (
	"crypto/rand"
	"fmt"
)

// GenerateRandByteArray returns size bytes from the system CSPRNG.
// A failing entropy source is reported, never papered over.
func GenerateRandByteArray(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("entropy source: %w", err)
	}
	return b, nil
}

// WipeByteArray overwrites b with zeros. Nil is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
