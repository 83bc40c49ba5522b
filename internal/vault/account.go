package vault

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/cryptox"
	"github.com/dmitrijs2005/keydozer/internal/journal"
	"github.com/dmitrijs2005/keydozer/internal/models"
)

// QA is a security question with its plaintext answer.
type QA struct {
	Question string
	Answer   string
}

func normalizeAnswer(a string) []byte {
	return []byte(strings.ToLower(strings.Join(strings.Fields(a), " ")))
}

// updateOwner applies fn to the session owner's record and saves it.
func (s *Service) updateOwner(ctx context.Context, fn func(o *models.VaultOwner) error) error {
	ownerID, err := s.Current()
	if err != nil {
		return err
	}
	o, err := s.loadOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	if err := fn(o); err != nil {
		return err
	}
	return s.saveOwner(ctx, o)
}

// SetPasswordHint stores a hint shown after the security questions are
// answered. An empty hint clears it.
func (s *Service) SetPasswordHint(ctx context.Context, hint string) error {
	return s.updateOwner(ctx, func(o *models.VaultOwner) error {
		o.PasswordHint = hint
		return nil
	})
}

// SetSecurityQuestions replaces the owner's questions. Answers are
// normalized (case and spacing) and stored only as argon2id hashes.
func (s *Service) SetSecurityQuestions(ctx context.Context, qas []QA) error {
	questions := make([]models.SecurityQuestion, 0, len(qas))
	for _, qa := range qas {
		answer := normalizeAnswer(qa.Answer)
		if strings.TrimSpace(qa.Question) == "" || len(answer) == 0 {
			return fmt.Errorf("%w: question and answer are required", common.ErrInvalidInput)
		}
		hash, err := cryptox.HashPassword(answer, s.kdf)
		if err != nil {
			return err
		}
		questions = append(questions, models.SecurityQuestion{Question: qa.Question, AnswerHash: hash})
	}
	return s.updateOwner(ctx, func(o *models.VaultOwner) error {
		o.SecurityQuestions = questions
		return nil
	})
}

// SecurityQuestions returns the questions of an owner. It needs no session.
func (s *Service) SecurityQuestions(ctx context.Context, ownerID string) ([]string, error) {
	o, err := s.loadOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(o.SecurityQuestions))
	for _, q := range o.SecurityQuestions {
		out = append(out, q.Question)
	}
	return out, nil
}

// PasswordHint discloses the hint when every security question is answered
// correctly, in order.
func (s *Service) PasswordHint(ctx context.Context, ownerID string, answers []string) (string, error) {
	o, err := s.loadOwner(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if len(o.SecurityQuestions) == 0 {
		return "", fmt.Errorf("%w: no security questions set", common.ErrInvalidInput)
	}
	if len(answers) != len(o.SecurityQuestions) {
		return "", common.ErrAuthenticationFailure
	}
	for i, q := range o.SecurityQuestions {
		ok, err := cryptox.CheckPassword(normalizeAnswer(answers[i]), q.AnswerHash)
		if err != nil {
			return "", err
		}
		if !ok {
			s.log.Warn(ctx, "security answer rejected", "owner", ownerID, "question", i)
			return "", common.ErrAuthenticationFailure
		}
	}
	return o.PasswordHint, nil
}

// SetTwoFactor records whether the owner requires a second factor. Code
// delivery is handled outside the vault.
func (s *Service) SetTwoFactor(ctx context.Context, enabled bool) error {
	return s.updateOwner(ctx, func(o *models.VaultOwner) error {
		o.TwoFactorEnabled = enabled
		return nil
	})
}

type erasePayload struct {
	OwnerID string `cbor:"owner_id"`
}

// eraseSteps deletes everything the owner has. Every step is idempotent so
// Recover can run the whole list again.
func (s *Service) eraseSteps(ownerID string) []sagaStep {
	deleteEntries := func(r *repos) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			list, err := r.entries.List(ctx, ownerID)
			if err != nil {
				return err
			}
			for _, e := range list {
				if err := r.entries.Delete(ctx, e.ID); err != nil {
					return err
				}
			}
			return nil
		}
	}

	steps := []sagaStep{{name: stepEntriesLocal, do: deleteEntries(s.local)}}
	if s.remote != nil {
		steps = append(steps, sagaStep{name: stepEntriesRemote, do: deleteEntries(s.remote)})
	}
	steps = append(steps, sagaStep{
		name: stepEnvelopes,
		do: func(ctx context.Context) error {
			inbox, err := s.envelopes.Inbox(ctx, ownerID)
			if err != nil {
				return err
			}
			for _, env := range inbox {
				if err := s.envelopes.Delete(ctx, env.ID); err != nil {
					return err
				}
			}
			return nil
		},
	})
	if s.remote != nil {
		steps = append(steps, sagaStep{
			name: stepOwnerRemote,
			do:   func(ctx context.Context) error { return s.remote.owners.Delete(ctx, ownerID) },
		})
	}
	steps = append(steps,
		sagaStep{
			name: stepOwnerLocal,
			do:   func(ctx context.Context) error { return s.local.owners.Delete(ctx, ownerID) },
		},
		sagaStep{
			name: stepProvider,
			do:   func(ctx context.Context) error { return s.auth.Remove(ctx, ownerID) },
		},
	)
	return steps
}

// EraseAccount deletes the session owner's entries, inbound envelopes,
// owner records and credentials, then locks the vault. The password must
// be confirmed. An interrupted erase is finished by Recover.
func (s *Service) EraseAccount(ctx context.Context, password []byte) error {
	ownerID, err := s.Current()
	if err != nil {
		return err
	}
	ok, err := s.auth.VerifyPassword(ctx, ownerID, password)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrAuthenticationFailure
	}

	in, err := s.journal.Begin(ctx, journal.KindErase, ownerID, erasePayload{OwnerID: ownerID})
	if err != nil {
		return err
	}
	if err := s.runSaga(ctx, "erase", in, s.eraseSteps(ownerID), true); err != nil {
		return err
	}
	s.log.Info(ctx, "account erased", "owner", ownerID)
	return s.Lock(ctx)
}
