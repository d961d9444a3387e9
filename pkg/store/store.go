// Package store drives the external version-control storage tool. The tool
// is opaque to the rest of the system: every operation here maps to one
// subcommand invocation with a defined exit-status contract, and nothing in
// this package interprets repository internals.
package store

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulschiretz/pgl-vault/pkg/plog"
	"github.com/paulschiretz/pgl-vault/pkg/util"
)

// checkoutControlFiles are the backend's own lock/control files inside a
// working copy. They must never be registered as backup content.
var checkoutControlFiles = []string{".fslckout", "_FOSSIL_"}

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)`)

// Store is a handle to one repository file managed by the external tool.
type Store struct {
	toolPath string
	repoPath string
	executor CommandExecutor
}

// New creates a Store using the real subprocess executor.
func New(toolPath, repoPath string) *Store {
	return NewWithExecutor(toolPath, repoPath, NewExecExecutor())
}

// NewWithExecutor creates a Store with a custom executor, used by tests.
func NewWithExecutor(toolPath, repoPath string, executor CommandExecutor) *Store {
	return &Store{
		toolPath: toolPath,
		repoPath: repoPath,
		executor: executor,
	}
}

// RepoPath returns the repository file path this store operates on.
func (s *Store) RepoPath() string {
	return s.repoPath
}

// Exists reports whether the repository file is present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.repoPath)
	return err == nil
}

// CheckAccess verifies an existing repository is both readable and writable.
func (s *Store) CheckAccess() error {
	if !util.Readable(s.repoPath) || !util.Writable(s.repoPath) {
		return fmt.Errorf("%s: %w", s.repoPath, ErrRepoPermission)
	}
	return nil
}

// Create initializes a new repository and records the project name as
// repository metadata.
func (s *Store) Create(ctx context.Context, projectName string) error {
	plog.Info("Creating repository", "repo", s.repoPath, "project", projectName)
	if err := s.executor.Execute(s.command(ctx, "", "init", s.repoPath)); err != nil {
		return err
	}
	return s.executor.Execute(s.command(ctx, "", "set", "project-name", projectName, "-R", s.repoPath))
}

// ProtocolVersion parses the tool's major version number from its version
// output. The commit step uses it to pick the hash-mode flag.
func (s *Store) ProtocolVersion(ctx context.Context) (int, error) {
	out, err := s.executor.ExecuteWithOutput(s.command(ctx, "", "version"))
	if err != nil {
		return 0, err
	}
	m := versionPattern.FindStringSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("cannot parse storage tool version from %q", strings.TrimSpace(out))
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("cannot parse storage tool version from %q: %w", strings.TrimSpace(out), err)
	}
	return major, nil
}

// Open opens a working copy of the repository in dir, which must exist and
// be empty. All working-copy operations run with dir as their working
// directory.
func (s *Store) Open(ctx context.Context, dir string) (*WorkingCopy, error) {
	if err := s.executor.Execute(s.command(ctx, dir, "open", s.repoPath)); err != nil {
		return nil, err
	}
	return &WorkingCopy{store: s, dir: dir}, nil
}

// RecentSummary returns a human-readable description of the most recent
// revision: author, timestamp, and the changed-file list.
func (s *Store) RecentSummary(ctx context.Context) (string, error) {
	return s.executor.ExecuteWithOutput(
		s.command(ctx, "", "timeline", "-n", "1", "-v", "-R", s.repoPath))
}

func (s *Store) command(ctx context.Context, dir string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, s.toolPath, args...)
	cmd.Dir = dir
	return cmd
}

// WorkingCopy is an open checkout of a Store, scoped to one directory.
type WorkingCopy struct {
	store *Store
	dir   string
}

// Dir returns the checkout directory.
func (w *WorkingCopy) Dir() string {
	return w.dir
}

// ListTracked returns the repository-relative paths of all files tracked by
// the current revision.
func (w *WorkingCopy) ListTracked(ctx context.Context) ([]string, error) {
	out, err := w.store.executor.ExecuteWithOutput(w.command(ctx, "ls"))
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// AddRemove registers every added and deleted file with the backend,
// including dotfiles but never the backend's own control files.
func (w *WorkingCopy) AddRemove(ctx context.Context) error {
	return w.store.executor.Execute(w.command(ctx,
		"addremove", "--dotfiles", "--ignore", strings.Join(checkoutControlFiles, ",")))
}

// CommitOptions parameterize one revision.
type CommitOptions struct {
	Message    string
	Tag        string
	Author     string
	AllowEmpty bool // a no-op backup still records a revision
	UseSHA3    bool // hash mode for protocol version >= 2
}

// Commit records a new revision with backend warnings suppressed.
func (w *WorkingCopy) Commit(ctx context.Context, opts CommitOptions) error {
	args := []string{
		"commit",
		"-m", opts.Message,
		"--tag", opts.Tag,
		"--user-override", opts.Author,
		"--no-warnings",
	}
	if opts.AllowEmpty {
		args = append(args, "--allow-empty")
	}
	if opts.UseSHA3 {
		args = append(args, "--sha3sum")
	}
	return w.store.executor.Execute(w.command(ctx, args...))
}

// Close closes the working copy, discarding any lock the backend holds.
func (w *WorkingCopy) Close(ctx context.Context) error {
	return w.store.executor.Execute(w.command(ctx, "close", "--force"))
}

func (w *WorkingCopy) command(ctx context.Context, args ...string) *exec.Cmd {
	return w.store.command(ctx, w.dir, args...)
}
