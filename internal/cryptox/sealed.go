package cryptox

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"
	"github.com/dmitrijs2005/keydozer/internal/common"
)

// ShareIdentity is an X25519 key pair used to receive shared entries.
// Recipient is public; Identity must be stored encrypted.
type ShareIdentity struct {
	Recipient string
	Identity  string
}

func GenerateShareIdentity() (ShareIdentity, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return ShareIdentity{}, err
	}
	return ShareIdentity{Recipient: id.Recipient().String(), Identity: id.String()}, nil
}

// SealToRecipient encrypts secret so that only the holder of the identity
// matching recipient can read it.
func SealToRecipient(secret []byte, recipient string) (string, error) {
	r, err := age.ParseX25519Recipient(recipient)
	if err != nil {
		return "", fmt.Errorf("%w: recipient: %v", common.ErrInvalidInput, err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, r)
	if err != nil {
		return "", err
	}
	if _, err := w.Write(secret); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// OpenSealed reverses SealToRecipient. Any failure, including a foreign
// identity, is common.ErrDecryptionFailure.
func OpenSealed(sealed, identity string) ([]byte, error) {
	id, err := age.ParseX25519Identity(identity)
	if err != nil {
		return nil, fmt.Errorf("%w: identity: %v", common.ErrDecryptionFailure, err)
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryptionFailure, err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryptionFailure, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryptionFailure, err)
	}
	return out, nil
}
