package vault

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/cryptox"
	"github.com/dmitrijs2005/keydozer/internal/journal"
	"github.com/dmitrijs2005/keydozer/internal/models"
)

// RotateReport summarizes a password rotation. Flagged lists entry ids with
// fields that could not be decrypted; those fields were left untouched.
type RotateReport struct {
	LocalRewritten  int
	RemoteRewritten int
	Flagged         []string
}

type rotatePayload struct {
	Old models.VaultOwner `cbor:"old"`
	New models.VaultOwner `cbor:"new"`
}

// RotatePassword changes the account password of the session owner. The
// master key itself is kept; only its wrapping changes. Every local and
// remote entry is re-encrypted first, and the new wrapped key and hash are
// persisted only after all entries were rewritten. If a later step fails,
// the owner records are restored and the old password keeps working.
func (s *Service) RotatePassword(ctx context.Context, oldPassword, newPassword []byte) (*RotateReport, error) {
	if len(newPassword) == 0 {
		return nil, fmt.Errorf("%w: new password is empty", common.ErrInvalidInput)
	}
	ownerID, err := s.Current()
	if err != nil {
		return nil, err
	}

	ok, err := s.auth.VerifyPassword(ctx, ownerID, oldPassword)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrAuthenticationFailure
	}
	old, err := s.loadOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	key, err := cryptox.UnwrapMasterKey(old.WrappedKey, oldPassword)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrAuthenticationFailure, err)
	}
	defer common.WipeByteArray(key)

	next := *old
	next.FallbackWrappedKey = ""
	next.WrappedKey, err = cryptox.WrapMasterKey(key, newPassword, s.kdf)
	if err != nil {
		return nil, err
	}
	next.PasswordHash, err = cryptox.HashPassword(newPassword, s.kdf)
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = s.clock.Now()

	in, err := s.journal.Begin(ctx, journal.KindRotate, ownerID, rotatePayload{Old: *old, New: next})
	if err != nil {
		return nil, err
	}

	report := &RotateReport{}
	steps := []sagaStep{{
		name: stepEntriesLocal,
		do: func(ctx context.Context) error {
			n, flagged, err := s.refreshEntries(ctx, s.local, ownerID, key)
			report.LocalRewritten = n
			report.Flagged = append(report.Flagged, flagged...)
			return err
		},
	}}
	if s.remote != nil {
		steps = append(steps, sagaStep{
			name: stepEntriesRemote,
			do: func(ctx context.Context) error {
				n, flagged, err := s.refreshEntries(ctx, s.remote, ownerID, key)
				report.RemoteRewritten = n
				report.Flagged = append(report.Flagged, flagged...)
				return err
			},
		})
	}
	steps = append(steps, sagaStep{
		name: stepOwnerLocal,
		do:   func(ctx context.Context) error { return s.local.owners.Put(ctx, &next) },
		undo: func(ctx context.Context) error { return s.local.owners.Put(ctx, old) },
	})
	if s.remote != nil {
		steps = append(steps, sagaStep{
			name: stepOwnerRemote,
			do:   func(ctx context.Context) error { return s.remote.owners.Put(ctx, &next) },
			undo: func(ctx context.Context) error { return s.remote.owners.Put(ctx, old) },
		})
	}
	// The attempt is journaled before the provider is called. Recover can
	// then tell a rotation that may have changed the provider password from
	// one that never reached it.
	steps = append(steps, sagaStep{
		name: stepProviderAttempt,
		do:   func(context.Context) error { return nil },
	}, sagaStep{
		name: stepProvider,
		do:   func(ctx context.Context) error { return s.auth.ChangePassword(ctx, ownerID, newPassword) },
	})

	if err := s.runSaga(ctx, "rotate", in, steps, false); err != nil {
		return report, err
	}

	s.log.Info(ctx, "password rotated", "owner", ownerID,
		"local", report.LocalRewritten, "remote", report.RemoteRewritten, "flagged", len(report.Flagged))
	s.notify(ctx, ownerID, "Your account password was changed.")
	return report, nil
}

// refreshEntries re-encrypts every entry of ownerID in r under the same
// key and writes them back as one batch. Entries are independent, so an
// interrupted pass on a store without batch support still leaves every
// entry readable.
func (s *Service) refreshEntries(ctx context.Context, r *repos, ownerID string, key []byte) (int, []string, error) {
	list, err := r.entries.List(ctx, ownerID)
	if err != nil {
		return 0, nil, err
	}
	var flagged []string
	for i := range list {
		if err := ctx.Err(); err != nil {
			return 0, flagged, err
		}
		e := &list[i]
		f, failed, err := refreshFields(e.Fields, key)
		if err != nil {
			return 0, flagged, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		if len(failed) > 0 {
			flagged = append(flagged, e.ID)
		}
		e.Fields = f
		e.Version = models.EntrySchemaVersion
		e.UpdatedAt = s.clock.Now()
	}
	if err := r.entries.PutAll(ctx, list); err != nil {
		return 0, flagged, err
	}
	return len(list), flagged, nil
}
