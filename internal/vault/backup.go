package vault

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/cryptox"
	"github.com/dmitrijs2005/keydozer/internal/models"
	"github.com/google/uuid"
)

// ImportResult counts what Import did.
type ImportResult struct {
	Imported int
	Skipped  int
}

// Export decrypts every local entry and returns a backup file sealed under
// passphrase. Entries that cannot be decrypted fail the export instead of
// being written out incomplete.
func (s *Service) Export(ctx context.Context, passphrase []byte) ([]byte, error) {
	var out []byte
	err := s.withKey(func(ownerID string, key []byte) error {
		list, err := s.local.entries.List(ctx, ownerID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		backup := models.Backup{Version: models.BackupVersion, CreatedAt: now, Entries: make([]models.EntryFields, 0, len(list))}
		for _, e := range list {
			f, failed, err := decryptFields(e.Fields, key)
			if err != nil {
				return err
			}
			if len(failed) > 0 {
				return fmt.Errorf("%w: entry %s", common.ErrDecryptionFailure, e.ID)
			}
			backup.Entries = append(backup.Entries, f)
		}

		sealed, err := cryptox.SealWithPassphrase(backup, passphrase, s.kdf)
		if err != nil {
			return err
		}
		out, err = json.MarshalIndent(models.BackupFile{Version: models.BackupVersion, CreatedAt: now, Data: sealed}, "", "  ")
		if err != nil {
			return err
		}
		s.log.Info(ctx, "vault exported", "owner", ownerID, "entries", len(backup.Entries))
		return nil
	})
	return out, err
}

// Import adds the entries of a backup file to the local vault. In
// ImportNewOnly mode entries whose service, username and category match an
// existing entry are skipped.
func (s *Service) Import(ctx context.Context, data, passphrase []byte, mode models.ImportMode) (*ImportResult, error) {
	if mode != models.ImportAll && mode != models.ImportNewOnly {
		return nil, fmt.Errorf("%w: import mode %q", common.ErrInvalidInput, mode)
	}
	var file models.BackupFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: backup file: %v", common.ErrInvalidInput, err)
	}
	if file.Version < 1 || file.Version > models.BackupVersion {
		return nil, fmt.Errorf("%w: unsupported backup version %d", common.ErrInvalidInput, file.Version)
	}
	var backup models.Backup
	if err := cryptox.OpenWithPassphrase(file.Data, passphrase, &backup); err != nil {
		return nil, err
	}

	res := &ImportResult{}
	err := s.withKey(func(ownerID string, key []byte) error {
		seen := map[[3]string]bool{}
		if mode == models.ImportNewOnly {
			list, err := s.local.entries.List(ctx, ownerID)
			if err != nil {
				return err
			}
			for _, e := range list {
				f, failed, err := decryptFields(e.Fields, key)
				if err != nil {
					return err
				}
				if len(failed) == 0 {
					seen[f.DuplicateKey()] = true
				}
			}
		}

		var batch []models.VaultEntry
		for _, f := range backup.Entries {
			if mode == models.ImportNewOnly && seen[f.DuplicateKey()] {
				res.Skipped++
				continue
			}
			enc, err := encryptFields(f, key)
			if err != nil {
				return err
			}
			now := s.clock.Now()
			batch = append(batch, models.VaultEntry{
				ID:        uuid.NewString(),
				OwnerID:   ownerID,
				Version:   models.EntrySchemaVersion,
				Fields:    enc,
				CreatedAt: now,
				UpdatedAt: now,
			})
			seen[f.DuplicateKey()] = true
		}
		if err := s.local.entries.PutAll(ctx, batch); err != nil {
			return err
		}
		res.Imported = len(batch)
		s.log.Info(ctx, "vault imported", "owner", ownerID, "mode", mode, "imported", res.Imported, "skipped", res.Skipped)
		return nil
	})
	return res, err
}
