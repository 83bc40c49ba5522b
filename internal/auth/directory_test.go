package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/keydozer/internal/clock"
	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/cryptox"
	"github.com/dmitrijs2005/keydozer/internal/models"
	"github.com/dmitrijs2005/keydozer/internal/store"
	"github.com/dmitrijs2005/keydozer/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putOwner(t *testing.T, r *store.OwnerRepository, id, password string) {
	t.Helper()
	h, err := cryptox.HashPassword([]byte(password), cryptox.TestKDFParams)
	require.NoError(t, err)
	require.NoError(t, r.Put(context.Background(), &models.VaultOwner{ID: id, PasswordHash: h}))
}

func TestDirectoryProvider(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	dir := store.NewOwnerRepository(memory.New())
	p := NewDirectoryProvider(dir, nil, cryptox.TestKDFParams, clk)

	ok, err := p.VerifyPassword(ctx, "alice", []byte("pw1"))
	require.NoError(t, err)
	assert.False(t, ok, "unknown owner")
	require.NoError(t, p.Enroll(ctx, "alice", []byte("pw1")))

	putOwner(t, dir, "alice", "pw1")
	require.ErrorIs(t, p.Enroll(ctx, "alice", []byte("pw1")), common.ErrDuplicateAccount)

	ok, err = p.VerifyPassword(ctx, "alice", []byte("pw1"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = p.VerifyPassword(ctx, "alice", []byte("nope"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.ChangePassword(ctx, "alice", []byte("pw2")))
	ok, err = p.VerifyPassword(ctx, "alice", []byte("pw1"))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = p.VerifyPassword(ctx, "alice", []byte("pw2"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.ErrorIs(t, p.ChangePassword(ctx, "bob", []byte("x")), common.ErrOwnerNotFound)
	require.NoError(t, p.Remove(ctx, "alice"))
}

func TestDirectoryProvider_ChangeKeepsMatchingRecord(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	dir := store.NewOwnerRepository(memory.New())
	putOwner(t, dir, "alice", "pw2")
	before, err := dir.Get(ctx, "alice")
	require.NoError(t, err)

	p := NewDirectoryProvider(dir, nil, cryptox.TestKDFParams, clk)
	require.NoError(t, p.ChangePassword(ctx, "alice", []byte("pw2")))

	after, err := dir.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
}

type unreachable struct{ store.Adapter }

func (unreachable) GetByID(context.Context, store.Collection, string) (store.Record, error) {
	return store.Record{}, errors.New("connection refused")
}

func TestDirectoryProvider_FallsBackToCache(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	cache := store.NewOwnerRepository(memory.New())
	putOwner(t, cache, "alice", "pw1")
	dir := store.NewOwnerRepository(unreachable{memory.New()})

	p := NewDirectoryProvider(dir, cache, cryptox.TestKDFParams, clk)
	ok, err := p.VerifyPassword(ctx, "alice", []byte("pw1"))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = NewDirectoryProvider(dir, nil, cryptox.TestKDFParams, clk).VerifyPassword(ctx, "alice", []byte("pw1"))
	require.Error(t, err)
	require.Error(t, p.Enroll(ctx, "bob", []byte("pw1")))
}
