package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/keydozer/internal/clock"
	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/cryptox"
	"github.com/dmitrijs2005/keydozer/internal/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func providers(t *testing.T) map[string]Provider {
	clk := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	return map[string]Provider{
		"sqlite": NewSQLiteProvider(setupDB(t), cryptox.TestKDFParams, clk),
		"memory": NewMemoryProvider(cryptox.TestKDFParams),
	}
}

func TestProvider_Lifecycle(t *testing.T) {
	ctx := context.Background()
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := p.VerifyPassword(ctx, "alice", []byte("pw1"))
			require.NoError(t, err)
			assert.False(t, ok, "unknown owner")

			require.NoError(t, p.Enroll(ctx, "alice", []byte("pw1")))
			require.ErrorIs(t, p.Enroll(ctx, "alice", []byte("other")), common.ErrDuplicateAccount)

			ok, err = p.VerifyPassword(ctx, "alice", []byte("pw1"))
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, p.ChangePassword(ctx, "alice", []byte("pw2")))
			ok, err = p.VerifyPassword(ctx, "alice", []byte("pw1"))
			require.NoError(t, err)
			assert.False(t, ok)
			ok, err = p.VerifyPassword(ctx, "alice", []byte("pw2"))
			require.NoError(t, err)
			assert.True(t, ok)

			require.ErrorIs(t, p.ChangePassword(ctx, "bob", []byte("x")), common.ErrOwnerNotFound)

			require.NoError(t, p.Remove(ctx, "alice"))
			require.NoError(t, p.Remove(ctx, "alice"))
			ok, err = p.VerifyPassword(ctx, "alice", []byte("pw2"))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}
