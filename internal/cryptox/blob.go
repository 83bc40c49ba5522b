package cryptox

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/keydozer/internal/common"
)

// SealJSON serializes v to JSON and encrypts it with AES-GCM.
// The nonce is prepended to the returned ciphertext.
//
// Example:
//
//	blob, err := SealJSON(backup, key)
//	if err != nil {
//	    return err
//	}
//	var restored Backup
//	err = OpenJSON(blob, key, &restored)
func SealJSON(v any, key []byte) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plaintext)

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce, err := common.GenerateRandByteArray(aead.NonceSize())
	if err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// OpenJSON decrypts a SealJSON blob and unmarshals it into v.
func OpenJSON(blob, key []byte, v any) error {
	aead, err := newGCM(key)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrDecryptionFailure, err)
	}
	ns := aead.NonceSize()
	if len(blob) < ns+aead.Overhead() {
		return fmt.Errorf("%w: blob too short", common.ErrDecryptionFailure)
	}
	plaintext, err := aead.Open(nil, blob[:ns], blob[ns:], nil)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrDecryptionFailure, err)
	}
	defer common.WipeByteArray(plaintext)
	return json.Unmarshal(plaintext, v)
}

const passphrasePrefix = "kdzx1"

// SealWithPassphrase seals v under a key derived from passphrase. The result
// embeds the KDF parameters and salt, so only the passphrase is needed to
// open it.
func SealWithPassphrase(v any, passphrase []byte, p KDFParams) (string, error) {
	if len(passphrase) == 0 {
		return "", fmt.Errorf("%w: empty passphrase", common.ErrInvalidInput)
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	salt, err := common.GenerateRandByteArray(SaltSize)
	if err != nil {
		return "", err
	}
	key := DeriveKey(passphrase, salt, p)
	defer common.WipeByteArray(key)

	blob, err := SealJSON(v, key)
	if err != nil {
		return "", err
	}
	return formatPHC(passphrasePrefix, p, salt, blob), nil
}

// OpenWithPassphrase reverses SealWithPassphrase. A wrong passphrase is
// common.ErrDecryptionFailure.
func OpenWithPassphrase(sealed string, passphrase []byte, v any) error {
	rec, err := parsePHC(sealed, passphrasePrefix)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrDecryptionFailure, err)
	}
	key := DeriveKey(passphrase, rec.salt, rec.params)
	defer common.WipeByteArray(key)
	return OpenJSON(rec.payload, key, v)
}
