package cryptox

import (
	"fmt"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"golang.org/x/crypto/argon2"
)

// SaltSize is the per-record salt length for every argon2id derivation.
const SaltSize = 16

// Ceilings for cost parameters read from stored records, so a tampered
// record cannot make unlock run for hours or exhaust memory. The memory
// limit is sixteen times the default.
const (
	maxMemoryKiB = 1024 * 1024
	maxTime      = 16
	maxThreads   = 64
)

// KDFParams are the argon2id cost parameters.
type KDFParams struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

var (
	DefaultKDFParams = KDFParams{Time: 1, MemoryKiB: 64 * 1024, Threads: 4}

	// TestKDFParams keep unit tests fast. Never use them for real vaults.
	TestKDFParams = KDFParams{Time: 1, MemoryKiB: 64, Threads: 1}
)

func (p KDFParams) Validate() error {
	if p.Time == 0 || p.MemoryKiB == 0 || p.Threads == 0 {
		return fmt.Errorf("%w: kdf parameters must be positive", common.ErrInvalidInput)
	}
	if p.MemoryKiB > maxMemoryKiB {
		return fmt.Errorf("%w: kdf memory %d KiB exceeds limit", common.ErrInvalidInput, p.MemoryKiB)
	}
	if p.Time > maxTime {
		return fmt.Errorf("%w: kdf time %d exceeds limit", common.ErrInvalidInput, p.Time)
	}
	if p.Threads > maxThreads {
		return fmt.Errorf("%w: kdf threads %d exceeds limit", common.ErrInvalidInput, p.Threads)
	}
	return nil
}

// DeriveKey stretches password into a KeySize key with argon2id.
func DeriveKey(password, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(password, salt, p.Time, p.MemoryKiB, p.Threads, KeySize)
}
