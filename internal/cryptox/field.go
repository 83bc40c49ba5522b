// Package cryptox holds the cryptographic primitives used by the vault:
// the field cipher, password key derivation, master key wrapping,
// password verification hashes and sealing of share keys.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/keydozer/internal/common"
)

const (
	// FieldMarker prefixes every value produced by EncryptField.
	FieldMarker = "kdz1:"
	// KeySize is the length of master keys and ephemeral share keys.
	KeySize = 32
)

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptField encrypts plaintext under key with AES-256-GCM and a fresh
// random nonce, so two calls with the same input never return the same value.
func EncryptField(plaintext string, key []byte) (string, error) {
	if len(key) != KeySize {
		return "", fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrInvalidInput, KeySize, len(key))
	}

	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce, err := common.GenerateRandByteArray(aead.NonceSize())
	if err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return FieldMarker + base64.StdEncoding.EncodeToString(sealed), nil
}

// IsCiphertext reports whether value carries the field cipher marker.
func IsCiphertext(value string) bool {
	return strings.HasPrefix(value, FieldMarker)
}

// DecryptField reverses EncryptField.
//
// Values without the marker were written before encryption existed and are
// returned unchanged. Marked values that fail to authenticate (wrong key,
// corrupt data) return common.ErrDecryptionFailure; an empty plaintext is a
// valid result and is never used to signal failure.
func DecryptField(value string, key []byte) (string, error) {
	if !IsCiphertext(value) {
		return value, nil
	}
	if len(key) != KeySize {
		return "", fmt.Errorf("%w: bad key length", common.ErrDecryptionFailure)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, FieldMarker))
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryptionFailure, err)
	}

	aead, err := newGCM(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryptionFailure, err)
	}

	ns := aead.NonceSize()
	if len(raw) < ns+aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", common.ErrDecryptionFailure)
	}

	plaintext, err := aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryptionFailure, err)
	}
	return string(plaintext), nil
}
