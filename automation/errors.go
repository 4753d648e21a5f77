package automation

import (
	"errors"
	"fmt"
)

// Fatal conditions. Anything else is logged and the run continues.
var (
	ErrMissingCredentials  = errors.New("missing ZAP_EMAIL/ZAP_PASSWORD credentials")
	ErrJobIncomplete       = errors.New("job does not meet the minimum completeness rule")
	ErrLoginTimeout        = errors.New("login did not reach the expected page in time")
	ErrCreateEntryNotFound = errors.New("listing creation entry point not found")
	ErrSubmitBlocked       = errors.New("click on a create/publish control blocked")
)

// StageError records the stage in which a run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
