package vault

import (
	"fmt"

	"github.com/dmitrijs2005/keydozer/internal/common"
)

// errNoRemote is returned by operations that need a remote store.
var errNoRemote = fmt.Errorf("%w: no remote store configured", common.ErrInvalidInput)

// StepError reports which step of a multi-store operation failed and
// whether the steps already applied were undone.
type StepError struct {
	Op          string
	Step        string
	Err         error
	Compensated bool
}

func (e *StepError) Error() string {
	state := "partially applied, run recover"
	if e.Compensated {
		state = "rolled back"
	}
	return fmt.Sprintf("%s: step %s failed (%s): %v", e.Op, e.Step, state, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
