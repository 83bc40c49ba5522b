// Package journal is the intent log for multi-store operations. An intent
// is written before the first side effect, each completed step is
// appended, and the record is closed as committed or compensated. Intents
// still pending at startup describe exactly which steps ran, so recovery
// can finish or undo them.
package journal

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/keydozer/internal/clock"
	"github.com/dmitrijs2005/keydozer/internal/codec"
	"github.com/dmitrijs2005/keydozer/internal/logging"
	"github.com/google/uuid"
)

type Kind string

const (
	KindRegister Kind = "register"
	KindRotate   Kind = "rotate"
	KindErase    Kind = "erase"
)

type State string

const (
	StatePending     State = "pending"
	StateCommitted   State = "committed"
	StateCompensated State = "compensated"
)

var (
	ErrNotFound = errors.New("intent not found")
	ErrCorrupt  = errors.New("intent checksum mismatch")
)

type Intent struct {
	ID        string    `cbor:"id"`
	Kind      Kind      `cbor:"kind"`
	OwnerID   string    `cbor:"owner_id"`
	State     State     `cbor:"state"`
	Steps     []string  `cbor:"steps"`
	Payload   []byte    `cbor:"payload"`
	CreatedAt time.Time `cbor:"created_at"`
	UpdatedAt time.Time `cbor:"updated_at"`
}

// Done reports whether step has been recorded.
func (in *Intent) Done(step string) bool {
	return slices.Contains(in.Steps, step)
}

// Decode unpacks the kind-specific payload.
func (in *Intent) Decode(v any) error {
	return codec.Unmarshal(in.Payload, v)
}

// Store persists intents. Save is an upsert by ID.
type Store interface {
	Save(ctx context.Context, in Intent) error
	Load(ctx context.Context, id string) (Intent, error)
	Pending(ctx context.Context) ([]Intent, error)
}

type Journal struct {
	store Store
	clock clock.Clock
	log   logging.Logger
}

func New(s Store, clk clock.Clock, log logging.Logger) *Journal {
	return &Journal{store: s, clock: clk, log: log.With("module", "journal")}
}

// Begin records a new pending intent carrying payload.
func (j *Journal) Begin(ctx context.Context, kind Kind, ownerID string, payload any) (*Intent, error) {
	data, err := codec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	now := j.clock.Now()
	in := &Intent{
		ID:        uuid.NewString(),
		Kind:      kind,
		OwnerID:   ownerID,
		State:     StatePending,
		Payload:   data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := j.store.Save(ctx, *in); err != nil {
		return nil, fmt.Errorf("begin %s: %w", kind, err)
	}
	j.log.Debug(ctx, "intent begun", "intent", in.ID, "kind", kind, "owner", ownerID)
	return in, nil
}

// Step appends step to the intent.
func (j *Journal) Step(ctx context.Context, in *Intent, step string) error {
	if in.Done(step) {
		return nil
	}
	in.Steps = append(in.Steps, step)
	in.UpdatedAt = j.clock.Now()
	if err := j.store.Save(ctx, *in); err != nil {
		return fmt.Errorf("record step %s: %w", step, err)
	}
	return nil
}

// Finish closes the intent with a terminal state.
func (j *Journal) Finish(ctx context.Context, in *Intent, state State) error {
	in.State = state
	in.UpdatedAt = j.clock.Now()
	if err := j.store.Save(ctx, *in); err != nil {
		return fmt.Errorf("finish intent %s: %w", in.ID, err)
	}
	j.log.Debug(ctx, "intent finished", "intent", in.ID, "kind", in.Kind, "state", state, "steps", len(in.Steps))
	return nil
}

// Pending lists intents left open, oldest first.
func (j *Journal) Pending(ctx context.Context) ([]Intent, error) {
	list, err := j.store.Pending(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(list, func(a, b Intent) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return list, nil
}
