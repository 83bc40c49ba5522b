package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/vault"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

var errUnknownCommand = errors.New("unknown command")

// execIface is the command surface the REPL needs. App satisfies it; tests
// can provide a lightweight stub.
type execIface interface {
	isUnlocked() bool
	dispatch(ctx context.Context, cmd string, args []string) error
}

// describe turns an error into the line shown to the user.
func describe(err error) string {
	var se *vault.StepError
	if errors.As(err, &se) {
		state := "Earlier steps were rolled back."
		if !se.Compensated {
			state = "Run 'recover' to finish or undo it."
		}
		return fmt.Sprintf("%s failed at step %q: %s %s", se.Op, se.Step, common.Message(se.Err), state)
	}
	return common.Message(err)
}

// runREPL reads commands line by line from r and dispatches them. Prompts
// issued by commands read from the same reader. The loop exits on EOF, on
// "exit"/"quit" or when ctx is done.
func runREPL(ctx context.Context, a execIface, statusFn func() string, r *bufio.Reader) {
	for ctx.Err() == nil {
		printlnFn(fmt.Sprintf("kdz %s> ", statusFn()))
		line, err := r.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn(helpText(a.isUnlocked()))
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			err := a.dispatch(ctx, cmd, args)
			switch {
			case errors.Is(err, errUnknownCommand):
				printlnFn("Unknown command:", cmd)
			case err != nil:
				printlnFn("Error:", describe(err))
			}
		}
	}
}
