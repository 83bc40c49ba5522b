package vault

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/keydozer/internal/journal"
)

const (
	stepProvider        = "provider"
	stepProviderAttempt = "provider.attempt"
	stepOwnerLocal      = "owner.local"
	stepOwnerRemote     = "owner.remote"
	stepEntriesLocal    = "entries.local"
	stepEntriesRemote   = "entries.remote"
	stepEnvelopes       = "envelopes"
)

type sagaStep struct {
	name string
	do   func(ctx context.Context) error
	// undo may be nil when the step has nothing to roll back.
	undo func(ctx context.Context) error
}

type registerPayload struct {
	OwnerID string `cbor:"owner_id"`
}

// runSaga applies steps in order, recording each one in the intent. When a
// step fails the applied steps are undone in reverse order and the intent
// is closed as compensated if every undo succeeded. A forward-only saga is
// never undone; its intent stays pending so Recover can finish it.
func (s *Service) runSaga(ctx context.Context, op string, in *journal.Intent, steps []sagaStep, forwardOnly bool) error {
	for i, st := range steps {
		applied := i
		err := st.do(ctx)
		if err == nil {
			applied = i + 1
			err = s.journal.Step(ctx, in, st.name)
		}
		if err == nil {
			continue
		}

		s.log.Error(ctx, "saga step failed", "op", op, "step", st.name, "owner", in.OwnerID, "error", err)
		if forwardOnly {
			return &StepError{Op: op, Step: st.name, Err: err}
		}
		undoErr := s.compensate(ctx, steps[:applied])
		compensated := undoErr == nil
		if compensated {
			if ferr := s.journal.Finish(ctx, in, journal.StateCompensated); ferr != nil {
				s.log.Warn(ctx, "intent not closed", "intent", in.ID, "error", ferr)
			}
		} else {
			s.log.Error(ctx, "compensation incomplete", "op", op, "intent", in.ID, "error", undoErr)
		}
		return &StepError{Op: op, Step: st.name, Err: err, Compensated: compensated}
	}
	return s.journal.Finish(ctx, in, journal.StateCommitted)
}

// compensate undoes steps in reverse order and keeps going past failures.
func (s *Service) compensate(ctx context.Context, steps []sagaStep) error {
	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].undo == nil {
			continue
		}
		if err := steps[i].undo(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
