package engine

import "errors"

var (
	// ErrBusy is returned when a trade cannot acquire its per-user
	// lock within the bounded wait. The caller should retry; no state
	// was touched.
	ErrBusy = errors.New("engine: account busy, retry")

	// ErrExecutionFailed is returned when the atomic commit fails.
	// Storage detail is logged, not surfaced. The commit is all or
	// nothing, so the ledgers are unchanged and the caller may retry.
	ErrExecutionFailed = errors.New("engine: execution failed, retry")
)
