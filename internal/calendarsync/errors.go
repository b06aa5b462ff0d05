package calendarsync

import (
	"errors"
	"fmt"
)

var (
	// ErrAccessDenied is returned when the calendar capability grant was
	// denied. Callers continue in local-only mode; sync is best-effort.
	ErrAccessDenied = errors.New("calendarsync: calendar access denied")
	// ErrNotConfigured is returned when sync is attempted before
	// SetupCalendar has succeeded. Recoverable by re-running setup.
	ErrNotConfigured = errors.New("calendarsync: sync calendar not configured")
	// ErrResourceNotFound is returned when a referenced calendar is missing
	// despite a prior Ready state, e.g. deleted out-of-band. Recoverable by
	// re-running SetupCalendar.
	ErrResourceNotFound = errors.New("calendarsync: calendar resource not found")
	// ErrNoDueDate is returned when a task without a due date is handed to
	// the sync path; there is no instant to place the event at.
	ErrNoDueDate = errors.New("calendarsync: task has no due date")
)

// TransientError wraps an underlying store I/O failure. The failed operation
// is idempotent and safe to retry wholesale; retry policy belongs to the
// caller.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("calendarsync: transient %s failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}
