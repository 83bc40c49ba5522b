// Package vault is the cryptographic core of keydozer. A Service registers
// owners, unlocks and locks their master key, rotates the account password,
// encrypts entries, reconciles the local and remote copies and shares
// entries between owners.
//
// A Service holds at most one unlocked session and expects a single caller
// at a time, as an interactive client does.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/keydozer/internal/auth"
	"github.com/dmitrijs2005/keydozer/internal/clock"
	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/cryptox"
	"github.com/dmitrijs2005/keydozer/internal/journal"
	"github.com/dmitrijs2005/keydozer/internal/logging"
	"github.com/dmitrijs2005/keydozer/internal/models"
	"github.com/dmitrijs2005/keydozer/internal/notify"
	"github.com/dmitrijs2005/keydozer/internal/store"
)

// Options wires a Service. Local, Auth and KDF are required; Remote may be
// nil for a local-only vault, in which case owners and envelopes are shared
// through the local store.
type Options struct {
	Local       store.Adapter
	Remote      store.Adapter
	Auth        auth.Provider
	Notifier    notify.Notifier
	Journal     *journal.Journal
	Clock       clock.Clock
	KDF         cryptox.KDFParams
	IdleTimeout time.Duration
	Log         logging.Logger
}

type Service struct {
	local     *repos
	remote    *repos
	envelopes *store.EnvelopeRepository

	auth     auth.Provider
	notifier notify.Notifier
	journal  *journal.Journal
	clock    clock.Clock
	kdf      cryptox.KDFParams
	idle     time.Duration
	log      logging.Logger

	mu      sync.Mutex
	session *Session
}

type repos struct {
	owners  *store.OwnerRepository
	entries *store.EntryRepository
}

func newRepos(a store.Adapter) *repos {
	return &repos{owners: store.NewOwnerRepository(a), entries: store.NewEntryRepository(a)}
}

func New(o Options) (*Service, error) {
	if o.Local == nil || o.Auth == nil {
		return nil, fmt.Errorf("%w: local store and auth provider are required", common.ErrInvalidInput)
	}
	if err := o.KDF.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Log == nil {
		o.Log = logging.Discard()
	}
	if o.Notifier == nil {
		o.Notifier = notify.NewLogNotifier(o.Log)
	}
	if o.Journal == nil {
		o.Journal = journal.New(journal.NewMemoryStore(), o.Clock, o.Log)
	}

	s := &Service{
		local:    newRepos(o.Local),
		auth:     o.Auth,
		notifier: o.Notifier,
		journal:  o.Journal,
		clock:    o.Clock,
		kdf:      o.KDF,
		idle:     o.IdleTimeout,
		log:      o.Log.With("module", "vault"),
	}
	shared := o.Local
	if o.Remote != nil {
		s.remote = newRepos(o.Remote)
		shared = o.Remote
	}
	s.envelopes = store.NewEnvelopeRepository(shared)
	return s, nil
}

// HasRemote reports whether a remote store is configured.
func (s *Service) HasRemote() bool { return s.remote != nil }

// directory is where owners look each other up: the remote store when one
// exists, the local store otherwise.
func (s *Service) directory() *repos {
	if s.remote != nil {
		return s.remote
	}
	return s.local
}

func (s *Service) notify(ctx context.Context, ownerID, msg string) {
	if err := s.notifier.Notify(ctx, ownerID, msg); err != nil {
		s.log.Warn(ctx, "notification failed", "owner", ownerID, "error", err)
	}
}

// withKey runs fn inside the current session. It must not be nested.
func (s *Service) withKey(fn func(ownerID string, key []byte) error) error {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return common.ErrLocked
	}
	err := sess.use(func(key []byte) error { return fn(sess.ownerID, key) })
	if errors.Is(err, common.ErrLocked) {
		s.dropSession(sess)
	}
	return err
}

func (s *Service) dropSession(sess *Session) {
	s.mu.Lock()
	if s.session == sess {
		s.session = nil
	}
	s.mu.Unlock()
	_ = sess.Close()
}

// Current returns the unlocked owner id, or common.ErrLocked.
func (s *Service) Current() (string, error) {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return "", common.ErrLocked
	}
	if sess.Expired() {
		s.dropSession(sess)
		return "", common.ErrLocked
	}
	return sess.ownerID, nil
}

// loadOwner returns the newest known copy of the owner record.
func (s *Service) loadOwner(ctx context.Context, ownerID string) (*models.VaultOwner, error) {
	copies, err := s.ownerCopies(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return copies[0], nil
}

// ownerCopies returns the distinct local and remote copies of the owner
// record, newest first. A newer remote copy replaces the local cache, so a
// device picks up a password rotated elsewhere. An unreachable remote falls
// back to the local copy.
func (s *Service) ownerCopies(ctx context.Context, ownerID string) ([]*models.VaultOwner, error) {
	local, err := s.local.owners.Get(ctx, ownerID)
	if err != nil && !errors.Is(err, common.ErrOwnerNotFound) {
		return nil, err
	}
	if s.remote == nil {
		if local == nil {
			return nil, err
		}
		return []*models.VaultOwner{local}, nil
	}

	remote, rerr := s.remote.owners.Get(ctx, ownerID)
	switch {
	case rerr == nil:
	case local == nil:
		return nil, rerr
	case errors.Is(rerr, common.ErrOwnerNotFound):
		return []*models.VaultOwner{local}, nil
	default:
		s.log.Warn(ctx, "remote owner unavailable, using local copy", "owner", ownerID, "error", rerr)
		return []*models.VaultOwner{local}, nil
	}

	if local == nil || remote.UpdatedAt.After(local.UpdatedAt) {
		if err := s.local.owners.Put(ctx, remote); err != nil {
			return nil, fmt.Errorf("cache owner locally: %w", err)
		}
		if local == nil || sameWrapping(local, remote) {
			return []*models.VaultOwner{remote}, nil
		}
		return []*models.VaultOwner{remote, local}, nil
	}
	if sameWrapping(local, remote) {
		return []*models.VaultOwner{local}, nil
	}
	return []*models.VaultOwner{local, remote}, nil
}

func sameWrapping(a, b *models.VaultOwner) bool {
	return a.WrappedKey == b.WrappedKey && a.FallbackWrappedKey == b.FallbackWrappedKey
}

// saveOwner writes the owner locally, then mirrors it remotely.
func (s *Service) saveOwner(ctx context.Context, o *models.VaultOwner) error {
	o.UpdatedAt = s.clock.Now()
	if err := s.local.owners.Put(ctx, o); err != nil {
		return err
	}
	if s.remote != nil {
		if err := s.remote.owners.Put(ctx, o); err != nil {
			return fmt.Errorf("mirror owner: %w", err)
		}
	}
	return nil
}

// Register creates an owner: a fresh master key wrapped under password, a
// password verification hash, a share identity, and provider credentials.
// The owner stays locked; call Unlock afterwards.
func (s *Service) Register(ctx context.Context, ownerID string, password []byte) error {
	if ownerID == "" || len(password) == 0 {
		return fmt.Errorf("%w: owner id and password are required", common.ErrInvalidInput)
	}
	for _, r := range []*repos{s.local, s.remote} {
		if r == nil {
			continue
		}
		_, err := r.owners.Get(ctx, ownerID)
		if err == nil {
			return common.ErrDuplicateAccount
		}
		if !errors.Is(err, common.ErrOwnerNotFound) {
			return err
		}
	}

	owner, err := s.newOwner(ownerID, password)
	if err != nil {
		return err
	}

	in, err := s.journal.Begin(ctx, journal.KindRegister, ownerID, registerPayload{OwnerID: ownerID})
	if err != nil {
		return err
	}
	steps := []sagaStep{
		{
			name: stepProvider,
			do:   func(ctx context.Context) error { return s.auth.Enroll(ctx, ownerID, password) },
			undo: func(ctx context.Context) error { return s.auth.Remove(ctx, ownerID) },
		},
	}
	if s.remote != nil {
		steps = append(steps, sagaStep{
			name: stepOwnerRemote,
			do:   func(ctx context.Context) error { return s.remote.owners.Put(ctx, owner) },
			undo: func(ctx context.Context) error { return s.remote.owners.Delete(ctx, ownerID) },
		})
	}
	steps = append(steps, sagaStep{
		name: stepOwnerLocal,
		do:   func(ctx context.Context) error { return s.local.owners.Put(ctx, owner) },
	})

	if err := s.runSaga(ctx, "register", in, steps, false); err != nil {
		return err
	}
	s.log.Info(ctx, "owner registered", "owner", ownerID)
	return nil
}

func (s *Service) newOwner(ownerID string, password []byte) (*models.VaultOwner, error) {
	key, err := cryptox.GenerateMasterKey()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	wrapped, err := cryptox.WrapMasterKey(key, password, s.kdf)
	if err != nil {
		return nil, err
	}
	hash, err := cryptox.HashPassword(password, s.kdf)
	if err != nil {
		return nil, err
	}
	share, err := cryptox.GenerateShareIdentity()
	if err != nil {
		return nil, err
	}
	sealedIdentity, err := cryptox.EncryptField(share.Identity, key)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	return &models.VaultOwner{
		ID:             ownerID,
		PasswordHash:   hash,
		WrappedKey:     wrapped,
		ShareRecipient: share.Recipient,
		ShareIdentity:  sealedIdentity,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Unlock verifies password with the auth provider, unwraps the owner's
// master key and opens a session. Any previous session is locked first.
func (s *Service) Unlock(ctx context.Context, ownerID string, password []byte) error {
	ok, err := s.auth.VerifyPassword(ctx, ownerID, password)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrAuthenticationFailure
	}

	copies, err := s.ownerCopies(ctx, ownerID)
	if err != nil {
		return err
	}
	key, src, primary, err := unwrapAny(copies, password)
	if err != nil {
		return err
	}
	if src != copies[0] || !primary || src.FallbackWrappedKey != "" {
		s.repairWrapping(ctx, src, key, password)
	}
	sess, err := newSession(ownerID, key, s.clock, s.idle)
	if err != nil {
		common.WipeByteArray(key)
		return err
	}

	s.mu.Lock()
	prev := s.session
	s.session = sess
	s.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	s.log.Info(ctx, "vault unlocked", "owner", ownerID)
	return nil
}

// unwrapAny tries every wrapping of every copy, newest first. It returns
// the copy that opened and whether its primary WrappedKey did.
func unwrapAny(copies []*models.VaultOwner, password []byte) ([]byte, *models.VaultOwner, bool, error) {
	var first error
	for _, o := range copies {
		for i, w := range []string{o.WrappedKey, o.FallbackWrappedKey} {
			if w == "" {
				continue
			}
			key, err := cryptox.UnwrapMasterKey(w, password)
			if err == nil {
				return key, o, i == 0, nil
			}
			if first == nil {
				first = err
			}
		}
	}
	if first == nil {
		first = common.ErrUnwrapFailure
	}
	return nil, nil, false, first
}

// repairWrapping rewrites the owner record that opened so its primary
// wrapping and hash match the password the provider just accepted, drops
// any fallback wrapping and stores it as the newest copy everywhere. A failed repair is logged; the next unlock retries.
func (s *Service) repairWrapping(ctx context.Context, o *models.VaultOwner, key, password []byte) {
	next := *o
	var err error
	if next.WrappedKey, err = cryptox.WrapMasterKey(key, password, s.kdf); err == nil {
		next.PasswordHash, err = cryptox.HashPassword(password, s.kdf)
	}
	if err == nil {
		next.FallbackWrappedKey = ""
		err = s.saveOwner(ctx, &next)
	}
	if err != nil {
		s.log.Warn(ctx, "owner wrapping not repaired", "owner", o.ID, "error", err)
		return
	}
	s.log.Info(ctx, "owner wrapping repaired", "owner", o.ID)
}

// Lock zeroes the master key. Locking a locked vault is a no-op.
func (s *Service) Lock(ctx context.Context) error {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()
	if sess == nil {
		return nil
	}
	s.log.Info(ctx, "vault locked", "owner", sess.ownerID)
	return sess.Close()
}
