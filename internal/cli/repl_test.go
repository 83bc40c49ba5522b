package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	unlocked bool
	calls    []string
	errs     map[string]error
}

func (f *fakeExec) isUnlocked() bool { return f.unlocked }

func (f *fakeExec) dispatch(_ context.Context, cmd string, args []string) error {
	if lookup(cmd) == nil {
		return errUnknownCommand
	}
	f.calls = append(f.calls, strings.TrimSpace(cmd+" "+strings.Join(args, " ")))
	if cmd == "unlock" {
		f.unlocked = true
	}
	return f.errs[cmd]
}

// capture replaces printlnFn and returns the printed lines.
func capture(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	out := capture(t)
	exec := &fakeExec{errs: map[string]error{"show": common.ErrEntryNotFound}}

	runREPL(context.Background(), exec, func() string { return "locked" }, rdr(strings.Join([]string{
		"help",
		"unlock alice",
		"",
		"list",
		"show  42 --reveal",
		"foobar",
		"exit",
		"list",
	}, "\n")))

	assert.Equal(t, []string{"unlock alice", "list", "show 42 --reveal"}, exec.calls)
	joined := strings.Join(*out, "\n")
	assert.Contains(t, joined, "Unknown command: foobar")
	assert.Contains(t, joined, "Error: Entry not found.")
	assert.Contains(t, joined, "Bye!")
}

func TestRunREPL_StopsOnEOF(t *testing.T) {
	capture(t)
	exec := &fakeExec{unlocked: true}

	runREPL(context.Background(), exec, func() string { return "alice" }, rdr("list"))

	assert.Equal(t, []string{"list"}, exec.calls)
}

func TestRunREPL_StopsOnCancelledContext(t *testing.T) {
	capture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := &fakeExec{}

	runREPL(ctx, exec, func() string { return "" }, rdr("list\n"))

	assert.Empty(t, exec.calls)
}

func TestHelpText(t *testing.T) {
	locked := helpText(false)
	assert.Contains(t, locked, "register")
	assert.Contains(t, locked, "recover")
	assert.NotContains(t, locked, "share --to")

	unlocked := helpText(true)
	assert.Contains(t, unlocked, "share --to")
	assert.Contains(t, unlocked, "recover")
	assert.NotContains(t, unlocked, "register")
}

func TestDescribe(t *testing.T) {
	err := fmt.Errorf("wrap: %w", &vault.StepError{Op: "rotate", Step: "provider", Err: errors.New("down"), Compensated: true})
	msg := describe(err)
	require.Contains(t, msg, `rotate failed at step "provider"`)
	require.Contains(t, msg, "rolled back")

	msg = describe(&vault.StepError{Op: "erase", Step: "owner.remote", Err: common.ErrInvalidInput})
	require.Contains(t, msg, "recover")

	require.Equal(t, "Wrong password.", describe(common.ErrAuthenticationFailure))
}
