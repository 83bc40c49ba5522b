package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/cryptox"
)

// MemoryProvider keeps hashes in a map. Used by tests and ephemeral runs.
type MemoryProvider struct {
	mu     sync.Mutex
	hashes map[string]string
	params cryptox.KDFParams
}

func NewMemoryProvider(params cryptox.KDFParams) *MemoryProvider {
	return &MemoryProvider{hashes: map[string]string{}, params: params}
}

func (p *MemoryProvider) Enroll(ctx context.Context, ownerID string, password []byte) error {
	h, err := cryptox.HashPassword(password, p.params)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.hashes[ownerID]; ok {
		return common.ErrDuplicateAccount
	}
	p.hashes[ownerID] = h
	return nil
}

func (p *MemoryProvider) VerifyPassword(ctx context.Context, ownerID string, password []byte) (bool, error) {
	p.mu.Lock()
	h, ok := p.hashes[ownerID]
	p.mu.Unlock()
	if !ok {
		return false, nil
	}
	return cryptox.CheckPassword(password, h)
}

func (p *MemoryProvider) ChangePassword(ctx context.Context, ownerID string, newPassword []byte) error {
	h, err := cryptox.HashPassword(newPassword, p.params)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.hashes[ownerID]; !ok {
		return fmt.Errorf("%w: %s", common.ErrOwnerNotFound, ownerID)
	}
	p.hashes[ownerID] = h
	return nil
}

func (p *MemoryProvider) Remove(ctx context.Context, ownerID string) error {
	p.mu.Lock()
	delete(p.hashes, ownerID)
	p.mu.Unlock()
	return nil
}
