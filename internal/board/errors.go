package board

import "errors"

// Sentinel errors for board reads and mutations.
var (
	ErrStoreUnavailable = errors.New("task store unavailable")
	ErrNotFound         = errors.New("task not found")
	ErrTransientRemote  = errors.New("transient remote error")
	ErrAmbiguous        = errors.New("task name is ambiguous")
)

// FailSoft names how a reader reacts to a failed remote call.
type FailSoft string

const (
	// FailSoftEmptyOnError substitutes an empty result and logs the failure.
	FailSoftEmptyOnError FailSoft = "empty-on-error"
	// FailSoftPropagate returns the failure to the caller.
	FailSoftPropagate FailSoft = "propagate"
)
