package vault

import (
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/keydozer/internal/clock"
	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/securemem"
)

// Session is the Unlocked state of one owner: the unwrapped master key in
// locked memory plus the idle timer. A closed or idle-expired session
// answers common.ErrLocked.
type Session struct {
	ownerID string
	key     *securemem.Buffer
	clock   clock.Clock
	idle    time.Duration

	mu       sync.Mutex
	lastUsed time.Time
	closed   bool
}

// newSession takes ownership of key and zeroes the caller's copy.
func newSession(ownerID string, key []byte, clk clock.Clock, idle time.Duration) (*Session, error) {
	buf, err := securemem.FromBytes(key)
	if err != nil {
		return nil, err
	}
	return &Session{ownerID: ownerID, key: buf, clock: clk, idle: idle, lastUsed: clk.Now()}, nil
}

func (s *Session) OwnerID() string { return s.ownerID }

// Expired reports whether the idle timeout has passed. A zero timeout never
// expires.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiredLocked()
}

func (s *Session) expiredLocked() bool {
	return s.idle > 0 && s.clock.Now().Sub(s.lastUsed) >= s.idle
}

// use runs fn with the key and refreshes the idle timer. An expired session
// is closed on the spot.
func (s *Session) use(fn func(key []byte) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return common.ErrLocked
	}
	if s.expiredLocked() {
		s.closed = true
		s.mu.Unlock()
		_ = s.key.Close()
		return common.ErrLocked
	}
	s.lastUsed = s.clock.Now()
	s.mu.Unlock()

	err := s.key.Use(fn)
	if errors.Is(err, securemem.ErrClosed) {
		return common.ErrLocked
	}
	return err
}

// Close zeroes the key. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.key.Close()
}
