package store

import (
	"errors"
	"fmt"
)

// Sentinel errors usable with errors.Is.
var (
	// ErrStoreOperationFailed indicates the storage tool returned an error.
	ErrStoreOperationFailed = errors.New("store operation failed")

	// ErrRepoPermission indicates an existing repository is not both readable
	// and writable by the calling identity.
	ErrRepoPermission = errors.New("repository is not readable and writable")
)

// StoreError captures a failed storage-tool invocation: the subcommand, its
// arguments, the process error, and whatever the tool printed to stderr.
type StoreError struct {
	Operation string
	Args      []string
	Err       error
	Output    string
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("store %s failed", e.Operation)
	if e.Output != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Output)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return ErrStoreOperationFailed
}
