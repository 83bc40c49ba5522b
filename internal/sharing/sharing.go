// Package sharing moves entries between two owners without either master
// key leaving its owner. Entries are re-encrypted under a one-time
// ephemeral key, and that key travels sealed to the recipient's share
// identity.
package sharing

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/cryptox"
	"github.com/dmitrijs2005/keydozer/internal/models"
	"github.com/google/uuid"
)

// acceptedNamespace scopes the ids minted for accepted entries.
var acceptedNamespace = uuid.MustParse("7d5e3c1a-9b2f-4e60-8a41-2c6f0b9d1e37")

// AcceptedID is the recipient-side id for an origin entry accepted from an
// envelope. It is stable, so repeating an interrupted accept overwrites
// instead of duplicating.
func AcceptedID(envelopeID, originID string) string {
	return uuid.NewSHA1(acceptedNamespace, []byte(envelopeID+"/"+originID)).String()
}

func recrypt(f models.EntryFields, from, to []byte) (models.EntryFields, error) {
	return f.Map(func(_, v string) (string, error) {
		pt, err := cryptox.DecryptField(v, from)
		if err != nil {
			return "", err
		}
		return cryptox.EncryptField(pt, to)
	})
}

// Build re-encrypts entries from the sender's master key to a fresh
// ephemeral key and returns the envelope to publish. Sharing with yourself
// is common.ErrSelfShareRejected. An entry that cannot be decrypted fails
// the whole build.
func Build(senderID string, recipient *models.VaultOwner, entries []models.VaultEntry, masterKey []byte, now time.Time) (*models.ShareEnvelope, error) {
	if recipient.ID == senderID {
		return nil, common.ErrSelfShareRejected
	}
	if recipient.ShareRecipient == "" {
		return nil, fmt.Errorf("%w: owner %s has no share key", common.ErrInvalidInput, recipient.ID)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: nothing to share", common.ErrInvalidInput)
	}

	ephemeral, err := cryptox.GenerateMasterKey()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(ephemeral)

	env := &models.ShareEnvelope{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipient.ID,
		Accepted:    []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, e := range entries {
		f, err := recrypt(e.Fields, masterKey, ephemeral)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		env.Entries = append(env.Entries, models.SharedEntry{OriginID: e.ID, Fields: f})
	}

	env.SealedKey, err = cryptox.SealToRecipient(ephemeral, recipient.ShareRecipient)
	if err != nil {
		return nil, err
	}
	return env, nil
}

// Open unseals the envelope key with the recipient's share identity and
// returns a new entry, owned by recipientID and encrypted under masterKey,
// for every item not yet accepted. The envelope itself is not modified.
func Open(env *models.ShareEnvelope, recipientID, identity string, masterKey []byte, now time.Time) ([]models.VaultEntry, error) {
	if env.RecipientID != recipientID {
		return nil, common.ErrEnvelopeNotFound
	}
	pending := env.Pending()
	if len(pending) == 0 {
		return nil, nil
	}

	ephemeral, err := cryptox.OpenSealed(env.SealedKey, identity)
	if err != nil {
		return nil, fmt.Errorf("envelope %s: %w", env.ID, err)
	}
	defer common.WipeByteArray(ephemeral)

	out := make([]models.VaultEntry, 0, len(pending))
	for _, se := range pending {
		f, err := recrypt(se.Fields, ephemeral, masterKey)
		if err != nil {
			return nil, fmt.Errorf("envelope %s entry %s: %w", env.ID, se.OriginID, err)
		}
		out = append(out, models.VaultEntry{
			ID:        AcceptedID(env.ID, se.OriginID),
			OwnerID:   recipientID,
			Version:   models.EntrySchemaVersion,
			Fields:    f,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return out, nil
}
