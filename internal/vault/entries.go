package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/cryptox"
	"github.com/dmitrijs2005/keydozer/internal/models"
	"github.com/google/uuid"
)

// Item is a decrypted entry. Failed names the fields that could not be
// decrypted; their values in Fields are empty.
type Item struct {
	models.VaultEntry
	Failed []string
}

func encryptFields(f models.EntryFields, key []byte) (models.EntryFields, error) {
	return f.Map(func(_, v string) (string, error) { return cryptox.EncryptField(v, key) })
}

// decryptFields opens every field it can and lists the ones it cannot.
func decryptFields(f models.EntryFields, key []byte) (models.EntryFields, []string, error) {
	var failed []string
	out, err := f.Map(func(name, v string) (string, error) {
		pt, err := cryptox.DecryptField(v, key)
		if errors.Is(err, common.ErrDecryptionFailure) {
			failed = append(failed, name)
			return "", nil
		}
		return pt, err
	})
	return out, failed, err
}

// refreshFields re-encrypts every field under the same key. Fields that do
// not decrypt are kept as they are and reported.
func refreshFields(f models.EntryFields, key []byte) (models.EntryFields, []string, error) {
	var failed []string
	out, err := f.Map(func(name, v string) (string, error) {
		pt, err := cryptox.DecryptField(v, key)
		if errors.Is(err, common.ErrDecryptionFailure) {
			failed = append(failed, name)
			return v, nil
		}
		if err != nil {
			return "", err
		}
		return cryptox.EncryptField(pt, key)
	})
	return out, failed, err
}

// EncryptEntry encrypts plaintext fields under the session key.
func (s *Service) EncryptEntry(fields models.EntryFields) (models.EntryFields, error) {
	var out models.EntryFields
	err := s.withKey(func(_ string, key []byte) error {
		var err error
		out, err = encryptFields(fields, key)
		return err
	})
	return out, err
}

// DecryptEntry decrypts a stored entry under the session key. Any field
// that fails is common.ErrDecryptionFailure for the whole entry.
func (s *Service) DecryptEntry(e models.VaultEntry) (models.EntryFields, error) {
	var out models.EntryFields
	err := s.withKey(func(_ string, key []byte) error {
		f, failed, err := decryptFields(e.Fields, key)
		if err != nil {
			return err
		}
		if len(failed) > 0 {
			return fmt.Errorf("%w: entry %s fields %s", common.ErrDecryptionFailure, e.ID, strings.Join(failed, ","))
		}
		out = f
		return nil
	})
	return out, err
}

func validateFields(f models.EntryFields) error {
	if strings.TrimSpace(f.ServiceName) == "" {
		return fmt.Errorf("%w: service name is required", common.ErrInvalidInput)
	}
	return nil
}

// AddEntry stores a new entry in the local vault and returns its id.
func (s *Service) AddEntry(ctx context.Context, fields models.EntryFields) (string, error) {
	if err := validateFields(fields); err != nil {
		return "", err
	}
	var id string
	err := s.withKey(func(ownerID string, key []byte) error {
		enc, err := encryptFields(fields, key)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		e := &models.VaultEntry{
			ID:        uuid.NewString(),
			OwnerID:   ownerID,
			Version:   models.EntrySchemaVersion,
			Fields:    enc,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.local.entries.Put(ctx, e); err != nil {
			return err
		}
		id = e.ID
		s.log.Info(ctx, "entry added", "owner", ownerID, "entry", id)
		return nil
	})
	return id, err
}

// ownEntry loads a local entry and hides entries of other owners.
func (s *Service) ownEntry(ctx context.Context, ownerID, id string) (*models.VaultEntry, error) {
	e, err := s.local.entries.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: %s", common.ErrEntryNotFound, id)
	}
	return e, nil
}

// UpdateEntry replaces the fields of an existing local entry.
func (s *Service) UpdateEntry(ctx context.Context, id string, fields models.EntryFields) error {
	if err := validateFields(fields); err != nil {
		return err
	}
	return s.withKey(func(ownerID string, key []byte) error {
		e, err := s.ownEntry(ctx, ownerID, id)
		if err != nil {
			return err
		}
		enc, err := encryptFields(fields, key)
		if err != nil {
			return err
		}
		e.Fields = enc
		e.Version = models.EntrySchemaVersion
		e.UpdatedAt = s.clock.Now()
		if err := s.local.entries.Put(ctx, e); err != nil {
			return err
		}
		s.log.Info(ctx, "entry updated", "owner", ownerID, "entry", id)
		return nil
	})
}

// GetEntry returns one decrypted local entry.
func (s *Service) GetEntry(ctx context.Context, id string) (*Item, error) {
	var item *Item
	err := s.withKey(func(ownerID string, key []byte) error {
		e, err := s.ownEntry(ctx, ownerID, id)
		if err != nil {
			return err
		}
		f, failed, err := decryptFields(e.Fields, key)
		if err != nil {
			return err
		}
		e.Fields = f
		item = &Item{VaultEntry: *e, Failed: failed}
		return nil
	})
	return item, err
}

// ListEntries returns every local entry of the session owner, decrypted.
// Unreadable fields are reported per item and never stop the listing.
func (s *Service) ListEntries(ctx context.Context) ([]Item, error) {
	var items []Item
	err := s.withKey(func(ownerID string, key []byte) error {
		list, err := s.local.entries.List(ctx, ownerID)
		if err != nil {
			return err
		}
		items = make([]Item, 0, len(list))
		for _, e := range list {
			f, failed, err := decryptFields(e.Fields, key)
			if err != nil {
				return err
			}
			e.Fields = f
			items = append(items, Item{VaultEntry: e, Failed: failed})
		}
		return nil
	})
	return items, err
}

// DeleteEntry removes an entry locally and, when a remote store exists,
// its mirrored copy.
func (s *Service) DeleteEntry(ctx context.Context, id string) error {
	return s.withKey(func(ownerID string, _ []byte) error {
		if _, err := s.ownEntry(ctx, ownerID, id); err != nil {
			return err
		}
		if err := s.local.entries.Delete(ctx, id); err != nil {
			return err
		}
		if s.remote != nil {
			if err := s.remote.entries.Delete(ctx, id); err != nil {
				return fmt.Errorf("delete remote copy: %w", err)
			}
		}
		s.log.Info(ctx, "entry deleted", "owner", ownerID, "entry", id)
		return nil
	})
}

// MigrateEntries rewrites legacy local entries into the current schema,
// encrypting any metadata still stored in plaintext. It returns the number
// of entries rewritten.
func (s *Service) MigrateEntries(ctx context.Context) (int, error) {
	n := 0
	err := s.withKey(func(ownerID string, key []byte) error {
		list, err := s.local.entries.List(ctx, ownerID)
		if err != nil {
			return err
		}
		for _, e := range list {
			if e.Version >= models.EntrySchemaVersion {
				continue
			}
			e.Fields, err = e.Fields.Map(func(_, v string) (string, error) {
				if cryptox.IsCiphertext(v) {
					return v, nil
				}
				return cryptox.EncryptField(v, key)
			})
			if err != nil {
				return fmt.Errorf("migrate entry %s: %w", e.ID, err)
			}
			e.Version = models.EntrySchemaVersion
			e.UpdatedAt = s.clock.Now()
			if err := s.local.entries.Put(ctx, &e); err != nil {
				return err
			}
			n++
		}
		if n > 0 {
			s.log.Info(ctx, "entries migrated", "owner", ownerID, "count", n)
		}
		return nil
	})
	return n, err
}
