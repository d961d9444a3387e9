package checkout

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/paulschiretz/pgl-vault/pkg/backupset"
	"github.com/paulschiretz/pgl-vault/pkg/store"
)

// scriptedExecutor records every issued command and answers from a script
// keyed by subcommand.
type scriptedExecutor struct {
	calls    [][]string
	dirs     []string
	outputs  map[string]string
	failures map[string]error
}

func (e *scriptedExecutor) record(cmd *exec.Cmd) error {
	args := cmd.Args[1:]
	e.calls = append(e.calls, args)
	e.dirs = append(e.dirs, cmd.Dir)
	if err, ok := e.failures[args[0]]; ok {
		return err
	}
	return nil
}

func (e *scriptedExecutor) Execute(cmd *exec.Cmd) error {
	return e.record(cmd)
}

func (e *scriptedExecutor) ExecuteWithOutput(cmd *exec.Cmd) (string, error) {
	if err := e.record(cmd); err != nil {
		return "", err
	}
	return e.outputs[cmd.Args[1]], nil
}

func (e *scriptedExecutor) subcommands() []string {
	var subs []string
	for _, call := range e.calls {
		subs = append(subs, call[0])
	}
	return subs
}

func (e *scriptedExecutor) find(subcommand string) []string {
	for _, call := range e.calls {
		if call[0] == subcommand {
			return call
		}
	}
	return nil
}

type recordingEngine struct {
	destDir string
	paths   []string
	err     error
}

func (e *recordingEngine) Populate(ctx context.Context, destDir string, paths []string) error {
	e.destDir = destDir
	e.paths = paths
	return e.err
}

func newTestLifecycle(t *testing.T, repoPath string, executor *scriptedExecutor, engine *recordingEngine) *Lifecycle {
	t.Helper()
	if executor.outputs == nil {
		executor.outputs = map[string]string{}
	}
	if _, ok := executor.outputs["version"]; !ok {
		executor.outputs["version"] = "This is fossil version 2.26 [abcdef] 2026-01-01"
	}

	st := store.NewWithExecutor("fossil", repoPath, executor)
	lc := New(st, engine, Options{
		ProjectName:         "media",
		Author:              "nightly",
		WorkDir:             t.TempDir(),
		ClearBeforePopulate: true,
		GlobExclusion:       true,
	})
	lc.now = func() time.Time {
		return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	}
	return lc
}

func sourceFiles(t *testing.T, names ...string) (string, *backupset.Resolver) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	resolver := backupset.NewResolver(backupset.NewScanner())
	resolver.AddInclude(dir)
	return dir, resolver
}

func TestRunFreshRepository(t *testing.T) {
	executor := &scriptedExecutor{outputs: map[string]string{
		"timeline": "=== 2026-03-14 ===\n10:00:00 [abc] backup 2026-03-14",
	}}
	engine := &recordingEngine{}
	repoPath := filepath.Join(t.TempDir(), "media.fossil")
	lc := newTestLifecycle(t, repoPath, executor, engine)

	_, resolver := sourceFiles(t, "a.txt", "b.txt")

	result, err := lc.Run(context.Background(), resolver)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"init", "set", "version", "open", "ls", "addremove", "commit", "close", "timeline"}
	if got := executor.subcommands(); !slices.Equal(got, want) {
		t.Errorf("command order:\n got  %v\n want %v", got, want)
	}

	if result.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2", result.FileCount)
	}
	if result.RevisionTag != "2026-03-14" {
		t.Errorf("RevisionTag = %q", result.RevisionTag)
	}
	if !strings.Contains(result.Summary, "backup 2026-03-14") {
		t.Errorf("Summary = %q", result.Summary)
	}

	commit := executor.find("commit")
	if !slices.Contains(commit, "--sha3sum") {
		t.Errorf("commit should use SHA3 for protocol version 2: %v", commit)
	}
	if !slices.Contains(commit, "--allow-empty") {
		t.Errorf("commit should allow an empty revision: %v", commit)
	}
	if !slices.Contains(commit, "2026-03-14") {
		t.Errorf("commit should carry the date tag: %v", commit)
	}
	if !slices.Contains(commit, "nightly") {
		t.Errorf("commit should carry the author override: %v", commit)
	}

	if engine.destDir == "" {
		t.Fatal("engine was not invoked")
	}
	if _, err := os.Stat(engine.destDir); !os.IsNotExist(err) {
		t.Errorf("checkout dir %s should be removed after the run", engine.destDir)
	}
	if len(engine.paths) != 2 {
		t.Errorf("engine got %d paths, want 2", len(engine.paths))
	}
}

func TestRunExistingRepository(t *testing.T) {
	repoPath := filepath.Join(t.TempDir(), "media.fossil")
	if err := os.WriteFile(repoPath, []byte("repo"), 0o644); err != nil {
		t.Fatal(err)
	}

	executor := &scriptedExecutor{}
	lc := newTestLifecycle(t, repoPath, executor, &recordingEngine{})
	_, resolver := sourceFiles(t, "a.txt")

	if _, err := lc.Run(context.Background(), resolver); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	subs := executor.subcommands()
	if slices.Contains(subs, "init") || slices.Contains(subs, "set") {
		t.Errorf("existing repository must not be re-initialized: %v", subs)
	}
}

func TestRunPopulationFailureAborts(t *testing.T) {
	executor := &scriptedExecutor{}
	engineErr := errors.New("link pipeline broke")
	engine := &recordingEngine{err: engineErr}
	lc := newTestLifecycle(t, filepath.Join(t.TempDir(), "media.fossil"), executor, engine)
	_, resolver := sourceFiles(t, "a.txt")

	_, err := lc.Run(context.Background(), resolver)
	if !errors.Is(err, engineErr) {
		t.Fatalf("Run should surface the engine error, got %v", err)
	}

	subs := executor.subcommands()
	if slices.Contains(subs, "commit") {
		t.Errorf("no commit may happen after a failed population: %v", subs)
	}
	if !slices.Contains(subs, "close") {
		t.Errorf("the working copy must still be closed: %v", subs)
	}
	if _, statErr := os.Stat(engine.destDir); !os.IsNotExist(statErr) {
		t.Errorf("checkout dir %s should be removed after a failure", engine.destDir)
	}
}

func TestRunOldProtocolVersion(t *testing.T) {
	executor := &scriptedExecutor{outputs: map[string]string{
		"version": "This is fossil version 1.37 [abcdef] 2016-01-01",
	}}
	lc := newTestLifecycle(t, filepath.Join(t.TempDir(), "media.fossil"), executor, &recordingEngine{})
	_, resolver := sourceFiles(t, "a.txt")

	if _, err := lc.Run(context.Background(), resolver); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if commit := executor.find("commit"); slices.Contains(commit, "--sha3sum") {
		t.Errorf("protocol version 1 must not use SHA3: %v", commit)
	}
}

func TestRunGlobExclusion(t *testing.T) {
	executor := &scriptedExecutor{}
	engine := &recordingEngine{}
	lc := newTestLifecycle(t, filepath.Join(t.TempDir(), "media.fossil"), executor, engine)

	_, resolver := sourceFiles(t, "keep.txt", "skip.log")
	resolver.SetExcludeGlobs([]string{"*.log"})

	result, err := lc.Run(context.Background(), resolver)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.FileCount != 1 {
		t.Errorf("FileCount = %d, want 1", result.FileCount)
	}
	for _, p := range engine.paths {
		if strings.HasSuffix(p, ".log") {
			t.Errorf("excluded file reached the engine: %s", p)
		}
	}
}

func TestRunGlobExclusionDisabled(t *testing.T) {
	engine := &recordingEngine{}
	lc := newTestLifecycle(t, filepath.Join(t.TempDir(), "media.fossil"), &scriptedExecutor{}, engine)
	lc.opts.GlobExclusion = false

	_, resolver := sourceFiles(t, "keep.txt", "skip.log")
	resolver.SetExcludeGlobs([]string{"*.log"})

	result, err := lc.Run(context.Background(), resolver)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2 with exclusion disabled", result.FileCount)
	}
}

func TestClearTracked(t *testing.T) {
	checkoutDir := t.TempDir()
	for _, rel := range []string{"docs/readme.md", "docs/old/notes.txt", "top.txt"} {
		path := filepath.Join(checkoutDir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(rel), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// An untracked leftover shares a directory with a tracked file.
	if err := os.WriteFile(filepath.Join(checkoutDir, "docs", "keep.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	executor := &scriptedExecutor{outputs: map[string]string{
		"ls": "docs/readme.md\ndocs/old/notes.txt\ntop.txt\n",
	}}
	lc := newTestLifecycle(t, filepath.Join(t.TempDir(), "media.fossil"), executor, &recordingEngine{})

	wc, err := store.NewWithExecutor("fossil", lc.store.RepoPath(), executor).Open(context.Background(), checkoutDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := lc.clearTracked(context.Background(), wc); err != nil {
		t.Fatalf("clearTracked failed: %v", err)
	}

	for _, rel := range []string{"docs/readme.md", "docs/old/notes.txt", "top.txt"} {
		if _, err := os.Stat(filepath.Join(checkoutDir, rel)); !os.IsNotExist(err) {
			t.Errorf("tracked file %s should be gone", rel)
		}
	}
	if _, err := os.Stat(filepath.Join(checkoutDir, "docs", "old")); !os.IsNotExist(err) {
		t.Error("emptied directory docs/old should be pruned")
	}
	if _, err := os.Stat(filepath.Join(checkoutDir, "docs", "keep.txt")); err != nil {
		t.Errorf("untracked file must survive clearing: %v", err)
	}
}

func TestPruneEmptyDirs(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "a", "b", "c"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "full"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "full", "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := pruneEmptyDirs(root); err != nil {
		t.Fatalf("pruneEmptyDirs failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a")); !os.IsNotExist(err) {
		t.Error("empty chain a/b/c should be fully removed")
	}
	if _, err := os.Stat(filepath.Join(root, "full", "f.txt")); err != nil {
		t.Errorf("non-empty directory must survive: %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root must survive: %v", err)
	}
}

func TestRunRepositoryCreateFailure(t *testing.T) {
	executor := &scriptedExecutor{failures: map[string]error{
		"init": errors.New("disk full"),
	}}
	engine := &recordingEngine{}
	lc := newTestLifecycle(t, filepath.Join(t.TempDir(), "media.fossil"), executor, engine)
	_, resolver := sourceFiles(t, "a.txt")

	if _, err := lc.Run(context.Background(), resolver); err == nil {
		t.Fatal("expected error when repository creation fails")
	}
	if engine.destDir != "" {
		t.Error("engine must not run when the repository could not be created")
	}
}
