package store

import (
	"bytes"
	"os/exec"
)

// CommandExecutor abstracts the execution of storage-tool subprocesses so
// tests can substitute a recording fake for the real binary.
type CommandExecutor interface {
	// Execute runs a command to completion, discarding stdout.
	Execute(cmd *exec.Cmd) error

	// ExecuteWithOutput runs a command and returns its stdout.
	ExecuteWithOutput(cmd *exec.Cmd) (string, error)
}

// ExecExecutor is the default CommandExecutor backed by os/exec.
type ExecExecutor struct{}

func NewExecExecutor() *ExecExecutor {
	return &ExecExecutor{}
}

func (e *ExecExecutor) Execute(cmd *exec.Cmd) error {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return newStoreError(cmd, err, stderr.String())
	}
	return nil
}

func (e *ExecExecutor) ExecuteWithOutput(cmd *exec.Cmd) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", newStoreError(cmd, err, stderr.String())
	}
	return stdout.String(), nil
}

func newStoreError(cmd *exec.Cmd, err error, stderr string) *StoreError {
	operation := ""
	var args []string
	if len(cmd.Args) > 1 {
		operation = cmd.Args[1]
		args = cmd.Args[2:]
	} else if len(cmd.Args) == 1 {
		operation = cmd.Args[0]
	}
	return &StoreError{
		Operation: operation,
		Args:      args,
		Err:       err,
		Output:    stderr,
	}
}
