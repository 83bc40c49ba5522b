package cryptox

import (
	"fmt"

	"github.com/dmitrijs2005/keydozer/internal/common"
)

const wrapPrefix = "kdzw1"

// GenerateMasterKey returns a fresh 256-bit secret. It fails only when the
// entropy source fails.
func GenerateMasterKey() ([]byte, error) {
	return common.GenerateRandByteArray(KeySize)
}

// WrapMasterKey seals key under a key-encryption key derived from password
// with argon2id and a fresh salt. Any failure is reported as
// common.ErrWrapFailure and no partial result is returned.
func WrapMasterKey(key, password []byte, p KDFParams) (string, error) {
	if len(key) != KeySize {
		return "", fmt.Errorf("%w: master key must be %d bytes", common.ErrWrapFailure, KeySize)
	}
	if len(password) == 0 {
		return "", fmt.Errorf("%w: empty password", common.ErrWrapFailure)
	}
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrWrapFailure, err)
	}

	salt, err := common.GenerateRandByteArray(SaltSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrWrapFailure, err)
	}

	kek := DeriveKey(password, salt, p)
	defer common.WipeByteArray(kek)

	aead, err := newGCM(kek)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrWrapFailure, err)
	}
	nonce, err := common.GenerateRandByteArray(aead.NonceSize())
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrWrapFailure, err)
	}

	// the record prefix is bound as associated data
	sealed := aead.Seal(nonce, nonce, key, []byte(wrapPrefix))
	return formatPHC(wrapPrefix, p, salt, sealed), nil
}

// UnwrapMasterKey recovers the master key. A wrong password and a corrupt
// record are indistinguishable and both return common.ErrUnwrapFailure.
func UnwrapMasterKey(wrapped string, password []byte) ([]byte, error) {
	rec, err := parsePHC(wrapped, wrapPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnwrapFailure, err)
	}

	kek := DeriveKey(password, rec.salt, rec.params)
	defer common.WipeByteArray(kek)

	aead, err := newGCM(kek)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnwrapFailure, err)
	}
	ns := aead.NonceSize()
	if len(rec.payload) < ns+aead.Overhead() {
		return nil, fmt.Errorf("%w: sealed key too short", common.ErrUnwrapFailure)
	}

	key, err := aead.Open(nil, rec.payload[:ns], rec.payload[ns:], []byte(wrapPrefix))
	if err != nil {
		return nil, common.ErrUnwrapFailure
	}
	if len(key) != KeySize {
		common.WipeByteArray(key)
		return nil, fmt.Errorf("%w: unexpected key length", common.ErrUnwrapFailure)
	}
	return key, nil
}
