package vault

import (
	"context"
	"strings"
	"testing"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/journal"
	"github.com/dmitrijs2005/keydozer/internal/models"
	"github.com/dmitrijs2005/keydozer/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityQuestionsAndHint(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.registerAndUnlock(t, "alice", "pw1")

	_, err := f.svc.PasswordHint(ctx, "alice", nil)
	require.ErrorIs(t, err, common.ErrInvalidInput)

	require.NoError(t, f.svc.SetPasswordHint(ctx, "first pet + year"))
	require.NoError(t, f.svc.SetSecurityQuestions(ctx, []QA{
		{Question: "First pet?", Answer: "  Rex "},
		{Question: "City of birth?", Answer: "New   York"},
	}))
	err = f.svc.SetSecurityQuestions(ctx, []QA{{Question: "Empty?", Answer: "   "}})
	require.ErrorIs(t, err, common.ErrInvalidInput)

	o := f.owner(t, f.remote, "alice")
	require.Len(t, o.SecurityQuestions, 2)
	assert.True(t, strings.HasPrefix(o.SecurityQuestions[0].AnswerHash, "$argon2id$"))
	assert.NotContains(t, o.SecurityQuestions[0].AnswerHash, "rex")

	require.NoError(t, f.svc.Lock(ctx))

	qs, err := f.svc.SecurityQuestions(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"First pet?", "City of birth?"}, qs)

	hint, err := f.svc.PasswordHint(ctx, "alice", []string{"rex", "new york"})
	require.NoError(t, err)
	assert.Equal(t, "first pet + year", hint)

	_, err = f.svc.PasswordHint(ctx, "alice", []string{"rex", "boston"})
	require.ErrorIs(t, err, common.ErrAuthenticationFailure)
	_, err = f.svc.PasswordHint(ctx, "alice", []string{"rex"})
	require.ErrorIs(t, err, common.ErrAuthenticationFailure)
	_, err = f.svc.PasswordHint(ctx, "nobody", []string{"rex"})
	require.ErrorIs(t, err, common.ErrOwnerNotFound)
}

func TestSetTwoFactor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.ErrorIs(t, f.svc.SetTwoFactor(ctx, true), common.ErrLocked)

	f.registerAndUnlock(t, "alice", "pw1")
	require.NoError(t, f.svc.SetTwoFactor(ctx, true))
	assert.True(t, f.owner(t, f.local, "alice").TwoFactorEnabled)
	assert.True(t, f.owner(t, f.remote, "alice").TwoFactorEnabled)

	// unrelated owner fields survive the update
	require.NoError(t, f.svc.Lock(ctx))
	require.NoError(t, f.svc.Unlock(ctx, "alice", []byte("pw1")))
}

func TestEraseAccount(t *testing.T) {
	ctx := context.Background()
	alice, bob := twoOwners(t)

	id, err := bob.svc.AddEntry(ctx, models.EntryFields{ServiceName: "mail"})
	require.NoError(t, err)
	_, err = bob.svc.PushRepairs(ctx)
	require.NoError(t, err)

	a, err := alice.svc.AddEntry(ctx, models.EntryFields{ServiceName: "gift"})
	require.NoError(t, err)
	_, err = alice.svc.ShareEntries(ctx, "bob", []string{a})
	require.NoError(t, err)

	require.ErrorIs(t, bob.svc.EraseAccount(ctx, []byte("wrong")), common.ErrAuthenticationFailure)
	require.NoError(t, bob.svc.EraseAccount(ctx, []byte("pw-b")))

	_, err = bob.svc.Current()
	require.ErrorIs(t, err, common.ErrLocked)
	_, err = store.NewEntryRepository(bob.local).Get(ctx, id)
	require.ErrorIs(t, err, common.ErrEntryNotFound)
	_, err = store.NewEntryRepository(bob.remote).Get(ctx, id)
	require.ErrorIs(t, err, common.ErrEntryNotFound)
	inbox, err := store.NewEnvelopeRepository(bob.remote).Inbox(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, inbox)
	_, err = store.NewOwnerRepository(bob.remote).Get(ctx, "bob")
	require.ErrorIs(t, err, common.ErrOwnerNotFound)
	ok, err := bob.auth.VerifyPassword(ctx, "bob", []byte("pw-b"))
	require.NoError(t, err)
	assert.False(t, ok)

	// alice is untouched
	items, err := alice.svc.ListEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NoError(t, bob.svc.Register(ctx, "bob", []byte("again")))
}

func TestEraseAccount_FailureLeavesIntentForRecover(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.registerAndUnlock(t, "alice", "pw1")
	_, err := f.svc.AddEntry(ctx, models.EntryFields{ServiceName: "mail"})
	require.NoError(t, err)

	f.remote.FailDelete(store.Owners, 1)
	err = f.svc.EraseAccount(ctx, []byte("pw1"))
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stepOwnerRemote, se.Step)
	assert.False(t, se.Compensated)

	pending, err := f.journal.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, journal.KindErase, pending[0].Kind)

	report, err := f.svc.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Committed)

	_, err = store.NewOwnerRepository(f.remote).Get(ctx, "alice")
	require.ErrorIs(t, err, common.ErrOwnerNotFound)
	_, err = store.NewOwnerRepository(f.local).Get(ctx, "alice")
	require.ErrorIs(t, err, common.ErrOwnerNotFound)
	ok, err := f.auth.VerifyPassword(ctx, "alice", []byte("pw1"))
	require.NoError(t, err)
	assert.False(t, ok)
}
