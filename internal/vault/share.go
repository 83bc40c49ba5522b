package vault

import (
	"context"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/cryptox"
	"github.com/dmitrijs2005/keydozer/internal/models"
	"github.com/dmitrijs2005/keydozer/internal/sharing"
)

// ShareEntries publishes an envelope carrying the selected local entries to
// recipientID and returns the envelope id.
func (s *Service) ShareEntries(ctx context.Context, recipientID string, entryIDs []string) (string, error) {
	var envID string
	err := s.withKey(func(ownerID string, key []byte) error {
		if recipientID == ownerID {
			return common.ErrSelfShareRejected
		}
		recipient, err := s.directory().owners.Get(ctx, recipientID)
		if err != nil {
			return err
		}

		ids := slices.Clone(entryIDs)
		slices.Sort(ids)
		ids = slices.Compact(ids)
		entries := make([]models.VaultEntry, 0, len(ids))
		for _, id := range ids {
			e, err := s.ownEntry(ctx, ownerID, id)
			if err != nil {
				return err
			}
			entries = append(entries, *e)
		}

		env, err := sharing.Build(ownerID, recipient, entries, key, s.clock.Now())
		if err != nil {
			return err
		}
		if err := s.envelopes.Put(ctx, env); err != nil {
			return err
		}
		envID = env.ID
		s.log.Info(ctx, "share published", "owner", ownerID, "recipient", recipientID, "envelope", env.ID, "entries", len(entries))
		s.notify(ctx, recipientID, fmt.Sprintf("%s shared %d entries with you.", ownerID, len(entries)))
		return nil
	})
	return envID, err
}

// Inbox lists envelopes addressed to the session owner.
func (s *Service) Inbox(ctx context.Context) ([]models.ShareEnvelope, error) {
	ownerID, err := s.Current()
	if err != nil {
		return nil, err
	}
	return s.envelopes.Inbox(ctx, ownerID)
}

// envelopeFor loads an envelope the owner may act on as recipient (or as
// sender when asSender is set). Foreign envelopes look missing.
func (s *Service) envelopeFor(ctx context.Context, ownerID, envID string, asSender bool) (*models.ShareEnvelope, error) {
	env, err := s.envelopes.Get(ctx, envID)
	if err != nil {
		return nil, err
	}
	party := env.RecipientID
	if asSender {
		party = env.SenderID
	}
	if party != ownerID {
		return nil, fmt.Errorf("%w: %s", common.ErrEnvelopeNotFound, envID)
	}
	return env, nil
}

// AcceptShare copies every not yet accepted entry of the envelope into the
// session owner's local vault and records the acceptance. Accepting again
// adds nothing; an accept interrupted midway can simply be retried.
func (s *Service) AcceptShare(ctx context.Context, envID string) ([]string, error) {
	var added []string
	err := s.withKey(func(ownerID string, key []byte) error {
		env, err := s.envelopeFor(ctx, ownerID, envID, false)
		if err != nil {
			return err
		}
		owner, err := s.loadOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		identity, err := cryptox.DecryptField(owner.ShareIdentity, key)
		if err != nil {
			return fmt.Errorf("share identity: %w", err)
		}

		pending := env.Pending()
		entries, err := sharing.Open(env, ownerID, identity, key, s.clock.Now())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		if err := s.local.entries.PutAll(ctx, entries); err != nil {
			return err
		}
		for _, e := range entries {
			added = append(added, e.ID)
		}

		for _, se := range pending {
			env.MarkAccepted(se.OriginID)
		}
		env.UpdatedAt = s.clock.Now()
		if err := s.envelopes.Put(ctx, env); err != nil {
			return fmt.Errorf("record acceptance: %w", err)
		}
		s.log.Info(ctx, "share accepted", "owner", ownerID, "envelope", envID, "entries", len(added))
		s.notify(ctx, env.SenderID, fmt.Sprintf("%s accepted %d shared entries.", ownerID, len(added)))
		return nil
	})
	return added, err
}

// RejectShare deletes an envelope addressed to the session owner. Nothing
// accepted earlier is removed from the vault.
func (s *Service) RejectShare(ctx context.Context, envID string) error {
	ownerID, err := s.Current()
	if err != nil {
		return err
	}
	env, err := s.envelopeFor(ctx, ownerID, envID, false)
	if err != nil {
		return err
	}
	if err := s.envelopes.Delete(ctx, envID); err != nil {
		return err
	}
	s.log.Info(ctx, "share rejected", "owner", ownerID, "envelope", envID)
	s.notify(ctx, env.SenderID, fmt.Sprintf("%s rejected your shared entries.", ownerID))
	return nil
}

// RevokeShare lets the sender withdraw an envelope.
func (s *Service) RevokeShare(ctx context.Context, envID string) error {
	ownerID, err := s.Current()
	if err != nil {
		return err
	}
	if _, err := s.envelopeFor(ctx, ownerID, envID, true); err != nil {
		return err
	}
	if err := s.envelopes.Delete(ctx, envID); err != nil {
		return err
	}
	s.log.Info(ctx, "share revoked", "owner", ownerID, "envelope", envID)
	return nil
}
