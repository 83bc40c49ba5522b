package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keydozer/internal/clock"
	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/cryptox"
	"github.com/dmitrijs2005/keydozer/internal/store"
)

// DirectoryProvider verifies passwords against the PasswordHash of the
// owner record in the shared directory, so every device that reaches the
// directory accepts the same password. The vault writes owner records
// itself; Enroll and Remove only guard and acknowledge.
//
// When the directory cannot be reached the local cache of the owner record
// is consulted instead.
type DirectoryProvider struct {
	dir    *store.OwnerRepository
	cache  *store.OwnerRepository
	params cryptox.KDFParams
	clock  clock.Clock
}

// NewDirectoryProvider returns a provider over dir. cache may be nil.
func NewDirectoryProvider(dir, cache *store.OwnerRepository, params cryptox.KDFParams, clk clock.Clock) *DirectoryProvider {
	return &DirectoryProvider{dir: dir, cache: cache, params: params, clock: clk}
}

func (p *DirectoryProvider) Enroll(ctx context.Context, ownerID string, password []byte) error {
	_, err := p.dir.Get(ctx, ownerID)
	if err == nil {
		return common.ErrDuplicateAccount
	}
	if errors.Is(err, common.ErrOwnerNotFound) {
		return nil
	}
	return fmt.Errorf("failed to check directory for %s: %w", ownerID, err)
}

func (p *DirectoryProvider) VerifyPassword(ctx context.Context, ownerID string, password []byte) (bool, error) {
	o, err := p.dir.Get(ctx, ownerID)
	if err != nil && !errors.Is(err, common.ErrOwnerNotFound) && p.cache != nil {
		o, err = p.cache.Get(ctx, ownerID)
	}
	if errors.Is(err, common.ErrOwnerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load owner %s: %w", ownerID, err)
	}
	if o.PasswordHash == "" {
		return false, nil
	}
	return cryptox.CheckPassword(password, o.PasswordHash)
}

// ChangePassword stores a hash of newPassword in the directory record. A
// record that already verifies newPassword is left alone, as happens when
// the vault wrote the new owner record first.
func (p *DirectoryProvider) ChangePassword(ctx context.Context, ownerID string, newPassword []byte) error {
	o, err := p.dir.Get(ctx, ownerID)
	if err != nil {
		return err
	}
	if o.PasswordHash != "" {
		if ok, err := cryptox.CheckPassword(newPassword, o.PasswordHash); err == nil && ok {
			return nil
		}
	}
	h, err := cryptox.HashPassword(newPassword, p.params)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	o.PasswordHash = h
	o.UpdatedAt = p.clock.Now()
	return p.dir.Put(ctx, o)
}

// Remove is a no-op: erasing the owner record removes its credentials.
func (p *DirectoryProvider) Remove(ctx context.Context, ownerID string) error {
	return nil
}
