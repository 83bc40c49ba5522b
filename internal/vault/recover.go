package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keydozer/internal/journal"
)

// RecoverReport counts the pending intents Recover closed.
type RecoverReport struct {
	Committed   int
	Compensated int
}

// Recover settles intents left pending by an interrupted register, rotate
// or erase. Registrations are undone. A rotation the auth provider
// confirmed is finished, one that never called the provider is undone by
// restoring the old owner record. When the process died while the provider
// was being called, the outcome is unknown: the new record is kept with the
// old wrapping as a fallback, so either password the provider accepts
// unlocks, and that unlock settles the record. Erasures are run again to
// completion. Failures are
// collected and the remaining intents are still processed.
func (s *Service) Recover(ctx context.Context) (*RecoverReport, error) {
	pending, err := s.journal.Pending(ctx)
	if err != nil {
		return nil, err
	}

	report := &RecoverReport{}
	var errs []error
	for i := range pending {
		in := &pending[i]
		state, err := s.recoverOne(ctx, in)
		if err != nil {
			s.log.Error(ctx, "recovery failed", "intent", in.ID, "kind", in.Kind, "owner", in.OwnerID, "error", err)
			errs = append(errs, fmt.Errorf("intent %s (%s): %w", in.ID, in.Kind, err))
			continue
		}
		if err := s.journal.Finish(ctx, in, state); err != nil {
			errs = append(errs, err)
			continue
		}
		if state == journal.StateCommitted {
			report.Committed++
		} else {
			report.Compensated++
		}
		s.log.Info(ctx, "intent recovered", "intent", in.ID, "kind", in.Kind, "owner", in.OwnerID, "state", state)
	}
	return report, errors.Join(errs...)
}

func (s *Service) recoverOne(ctx context.Context, in *journal.Intent) (journal.State, error) {
	switch in.Kind {
	case journal.KindRegister:
		var p registerPayload
		if err := in.Decode(&p); err != nil {
			return "", err
		}
		if err := s.auth.Remove(ctx, p.OwnerID); err != nil {
			return "", err
		}
		if s.remote != nil {
			if err := s.remote.owners.Delete(ctx, p.OwnerID); err != nil {
				return "", err
			}
		}
		if err := s.local.owners.Delete(ctx, p.OwnerID); err != nil {
			return "", err
		}
		return journal.StateCompensated, nil

	case journal.KindRotate:
		var p rotatePayload
		if err := in.Decode(&p); err != nil {
			return "", err
		}
		target, state := &p.Old, journal.StateCompensated
		switch {
		case in.Done(stepProvider):
			target, state = &p.New, journal.StateCommitted
		case in.Done(stepProviderAttempt):
			p.New.FallbackWrappedKey = p.Old.WrappedKey
			target, state = &p.New, journal.StateCommitted
		}
		if err := s.local.owners.Put(ctx, target); err != nil {
			return "", err
		}
		if s.remote != nil {
			if err := s.remote.owners.Put(ctx, target); err != nil {
				return "", err
			}
		}
		return state, nil

	case journal.KindErase:
		var p erasePayload
		if err := in.Decode(&p); err != nil {
			return "", err
		}
		for _, st := range s.eraseSteps(p.OwnerID) {
			if err := st.do(ctx); err != nil {
				return "", fmt.Errorf("step %s: %w", st.name, err)
			}
		}
		return journal.StateCommitted, nil
	}
	return "", fmt.Errorf("unknown intent kind %q", in.Kind)
}
