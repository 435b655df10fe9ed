package util

import (
	"errors"
	"fmt"
)

// Sentinel errors for the download pipeline failure taxonomy
var (
	// ErrAdapterUnavailable indicates a remote adapter could not be reached.
	// Non-fatal: callers retry on the next cycle.
	ErrAdapterUnavailable = errors.New("adapter unavailable")

	// ErrNoMatchFound indicates resolution confidence stayed below the
	// acceptance floor and the candidate needs manual resolution
	ErrNoMatchFound = errors.New("no match found")

	// ErrTransferFailed indicates the remote transfer errored or vanished
	// past the grace period; the record is retry-eligible
	ErrTransferFailed = errors.New("transfer failed")

	// ErrOrganizationFailed indicates the move/tag step failed and was
	// rolled back, leaving the source file in place
	ErrOrganizationFailed = errors.New("organization failed")

	// ErrConflictExhausted indicates destination naming collisions were
	// exhausted; fatal for the affected record only
	ErrConflictExhausted = errors.New("naming conflicts exhausted")

	// ErrRecordNotFound indicates a download record does not exist
	ErrRecordNotFound = errors.New("download record not found")

	// ErrTerminalState indicates a transition was attempted on a record
	// already in a terminal state
	ErrTerminalState = errors.New("record is in a terminal state")
)

// OrganizationError carries the concrete paths involved in a failed
// organization attempt so the host can surface them for manual cleanup.
type OrganizationError struct {
	SourcePath string
	DestPath   string
	Err        error
}

func (e *OrganizationError) Error() string {
	return fmt.Sprintf("organize %s -> %s: %v", e.SourcePath, e.DestPath, e.Err)
}

func (e *OrganizationError) Unwrap() error {
	return e.Err
}

func (e *OrganizationError) Is(target error) bool {
	return target == ErrOrganizationFailed
}

// NewOrganizationError wraps a move/tag failure with its paths
func NewOrganizationError(src, dest string, err error) *OrganizationError {
	return &OrganizationError{SourcePath: src, DestPath: dest, Err: err}
}
