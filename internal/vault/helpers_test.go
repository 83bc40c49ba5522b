package vault

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/keydozer/internal/auth"
	"github.com/dmitrijs2005/keydozer/internal/clock"
	"github.com/dmitrijs2005/keydozer/internal/cryptox"
	"github.com/dmitrijs2005/keydozer/internal/journal"
	"github.com/dmitrijs2005/keydozer/internal/logging"
	"github.com/dmitrijs2005/keydozer/internal/models"
	"github.com/dmitrijs2005/keydozer/internal/notify"
	"github.com/dmitrijs2005/keydozer/internal/store"
	"github.com/dmitrijs2005/keydozer/internal/store/memory"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// flakyAdapter fails PutByID or DeleteByID for matching collections while
// armed.
type flakyAdapter struct {
	store.Adapter

	mu      sync.Mutex
	failPut map[store.Collection]int
	failDel map[store.Collection]int
}

func newFlaky(a store.Adapter) *flakyAdapter {
	return &flakyAdapter{Adapter: a, failPut: map[store.Collection]int{}, failDel: map[store.Collection]int{}}
}

// FailPut makes the next n puts into coll fail. n < 0 fails forever.
func (f *flakyAdapter) FailPut(coll store.Collection, n int) {
	f.mu.Lock()
	f.failPut[coll] = n
	f.mu.Unlock()
}

func (f *flakyAdapter) FailDelete(coll store.Collection, n int) {
	f.mu.Lock()
	f.failDel[coll] = n
	f.mu.Unlock()
}

func take(m map[store.Collection]int, coll store.Collection) bool {
	n := m[coll]
	if n == 0 {
		return false
	}
	if n > 0 {
		m[coll] = n - 1
	}
	return true
}

func (f *flakyAdapter) PutByID(ctx context.Context, coll store.Collection, id string, rec store.Record) error {
	f.mu.Lock()
	fail := take(f.failPut, coll)
	f.mu.Unlock()
	if fail {
		return errBoom
	}
	return f.Adapter.PutByID(ctx, coll, id, rec)
}

func (f *flakyAdapter) DeleteByID(ctx context.Context, coll store.Collection, id string) error {
	f.mu.Lock()
	fail := take(f.failDel, coll)
	f.mu.Unlock()
	if fail {
		return errBoom
	}
	return f.Adapter.DeleteByID(ctx, coll, id)
}

// failingGets fails every GetByID, like an unreachable remote.
type failingGets struct {
	store.Adapter
	called bool
}

func (f *failingGets) GetByID(context.Context, store.Collection, string) (store.Record, error) {
	f.called = true
	return store.Record{}, errBoom
}

// flakyAuth fails ChangePassword while changeErr is set. onChange, when
// set, runs at the start of every ChangePassword.
type flakyAuth struct {
	auth.Provider
	changeErr error
	onChange  func()
}

func (f *flakyAuth) ChangePassword(ctx context.Context, ownerID string, newPassword []byte) error {
	if f.onChange != nil {
		f.onChange()
	}
	if f.changeErr != nil {
		return f.changeErr
	}
	return f.Provider.ChangePassword(ctx, ownerID, newPassword)
}

type fixture struct {
	svc     *Service
	local   *flakyAdapter
	remote  *flakyAdapter
	auth    *flakyAuth
	notes   *notify.Recorder
	clock   *clock.Fake
	journal *journal.Journal
}

type shared struct {
	remote *flakyAdapter
	auth   *flakyAuth
	notes  *notify.Recorder
	clock  *clock.Fake
}

func newShared() *shared {
	return &shared{
		remote: newFlaky(memory.New()),
		auth:   &flakyAuth{Provider: auth.NewMemoryProvider(cryptox.TestKDFParams)},
		notes:  &notify.Recorder{},
		clock:  clock.NewFake(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)),
	}
}

// device builds a Service with its own local store on top of the shared
// remote store, auth provider and clock.
func (sh *shared) device(t *testing.T, withRemote bool) *fixture {
	t.Helper()
	f := &fixture{
		local: newFlaky(memory.New()),
		auth:  sh.auth,
		notes: sh.notes,
		clock: sh.clock,
	}
	f.journal = journal.New(journal.NewMemoryStore(), sh.clock, logging.Discard())
	opts := Options{
		Local:       f.local,
		Auth:        sh.auth,
		Notifier:    sh.notes,
		Journal:     f.journal,
		Clock:       sh.clock,
		KDF:         cryptox.TestKDFParams,
		IdleTimeout: 10 * time.Minute,
		Log:         logging.Discard(),
	}
	if withRemote {
		f.remote = sh.remote
		opts.Remote = sh.remote
	}
	svc, err := New(opts)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newShared().device(t, true)
}

func (f *fixture) registerAndUnlock(t *testing.T, ownerID, password string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, ownerID, []byte(password)))
	require.NoError(t, f.svc.Unlock(ctx, ownerID, []byte(password)))
}

func (f *fixture) owner(t *testing.T, a store.Adapter, id string) *models.VaultOwner {
	t.Helper()
	o, err := store.NewOwnerRepository(a).Get(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (f *fixture) sessionKey(t *testing.T) []byte {
	t.Helper()
	var out []byte
	require.NoError(t, f.svc.withKey(func(_ string, key []byte) error {
		out = append([]byte(nil), key...)
		return nil
	}))
	return out
}
