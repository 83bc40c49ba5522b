package cryptox

import (
	"crypto/subtle"
	"fmt"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"golang.org/x/crypto/argon2"
)

const hashLen = 32

// HashPassword returns a PHC-style argon2id verifier for password. The salt
// is independent of any wrapping salt, so the verifier reveals nothing about
// the master key.
func HashPassword(password []byte, p KDFParams) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	salt, err := common.GenerateRandByteArray(SaltSize)
	if err != nil {
		return "", err
	}
	sum := argon2.IDKey(password, salt, p.Time, p.MemoryKiB, p.Threads, hashLen)
	return formatPHC("", p, salt, sum), nil
}

// CheckPassword compares password with an encoded verifier in constant time.
// A malformed verifier is an error, a mismatch is (false, nil).
func CheckPassword(password []byte, encoded string) (bool, error) {
	rec, err := parsePHC(encoded, "")
	if err != nil {
		return false, fmt.Errorf("verifier: %w", err)
	}
	sum := argon2.IDKey(password, rec.salt, rec.params.Time, rec.params.MemoryKiB, rec.params.Threads, uint32(len(rec.payload)))
	return subtle.ConstantTimeCompare(sum, rec.payload) == 1, nil
}
