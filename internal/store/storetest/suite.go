// Package storetest holds the behavioural checks every store.Adapter
// backend must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises the adapter returned by newAdapter. Each subtest gets a
// fresh adapter.
func Run(t *testing.T, newAdapter func(t *testing.T) store.Adapter) {
	ctx := context.Background()
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("get missing", func(t *testing.T) {
		a := newAdapter(t)
		_, err := a.GetByID(ctx, store.Entries, "nope")
		require.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("put get overwrite", func(t *testing.T) {
		a := newAdapter(t)
		require.NoError(t, a.PutByID(ctx, store.Entries, "e1", store.Record{OwnerID: "alice", Body: []byte(`{"v":1}`), UpdatedAt: ts}))

		got, err := a.GetByID(ctx, store.Entries, "e1")
		require.NoError(t, err)
		assert.Equal(t, "e1", got.ID)
		assert.Equal(t, "alice", got.OwnerID)
		assert.JSONEq(t, `{"v":1}`, string(got.Body))
		assert.True(t, ts.Equal(got.UpdatedAt), "updated_at %v", got.UpdatedAt)

		require.NoError(t, a.PutByID(ctx, store.Entries, "e1", store.Record{OwnerID: "alice", Body: []byte(`{"v":2}`), UpdatedAt: ts}))
		got, err = a.GetByID(ctx, store.Entries, "e1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(got.Body))
	})

	t.Run("collections are disjoint", func(t *testing.T) {
		a := newAdapter(t)
		require.NoError(t, a.PutByID(ctx, store.Owners, "alice", store.Record{OwnerID: "alice", Body: []byte(`{}`), UpdatedAt: ts}))
		_, err := a.GetByID(ctx, store.Entries, "alice")
		require.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("list by owner ordered", func(t *testing.T) {
		a := newAdapter(t)
		for _, id := range []string{"c", "a", "b"} {
			require.NoError(t, a.PutByID(ctx, store.Entries, id, store.Record{OwnerID: "alice", Body: []byte(`{}`), UpdatedAt: ts}))
		}
		require.NoError(t, a.PutByID(ctx, store.Entries, "z", store.Record{OwnerID: "bob", Body: []byte(`{}`), UpdatedAt: ts}))

		recs, err := a.ListByOwner(ctx, store.Entries, "alice")
		require.NoError(t, err)
		ids := make([]string, 0, len(recs))
		for _, r := range recs {
			ids = append(ids, r.ID)
		}
		assert.Equal(t, []string{"a", "b", "c"}, ids)

		recs, err = a.ListByOwner(ctx, store.Entries, "nobody")
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("owner change moves listing", func(t *testing.T) {
		a := newAdapter(t)
		require.NoError(t, a.PutByID(ctx, store.Envelopes, "env", store.Record{OwnerID: "bob", Body: []byte(`{}`), UpdatedAt: ts}))
		require.NoError(t, a.PutByID(ctx, store.Envelopes, "env", store.Record{OwnerID: "carol", Body: []byte(`{}`), UpdatedAt: ts}))

		recs, err := a.ListByOwner(ctx, store.Envelopes, "bob")
		require.NoError(t, err)
		assert.Empty(t, recs)
		recs, err = a.ListByOwner(ctx, store.Envelopes, "carol")
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	})

	t.Run("delete idempotent", func(t *testing.T) {
		a := newAdapter(t)
		require.NoError(t, a.PutByID(ctx, store.Entries, "e1", store.Record{OwnerID: "alice", Body: []byte(`{}`), UpdatedAt: ts}))
		require.NoError(t, a.DeleteByID(ctx, store.Entries, "e1"))
		require.NoError(t, a.DeleteByID(ctx, store.Entries, "e1"))

		_, err := a.GetByID(ctx, store.Entries, "e1")
		require.ErrorIs(t, err, common.ErrorNotFound)
		recs, err := a.ListByOwner(ctx, store.Entries, "alice")
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("unknown collection", func(t *testing.T) {
		a := newAdapter(t)
		_, err := a.GetByID(ctx, store.Collection("users"), "x")
		require.ErrorIs(t, err, common.ErrInvalidInput)
		require.ErrorIs(t, a.PutByID(ctx, store.Collection("users"), "x", store.Record{}), common.ErrInvalidInput)
	})
}
