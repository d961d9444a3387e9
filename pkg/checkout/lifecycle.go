// Package checkout runs one backup as a transactional working-copy
// lifecycle: create a scratch checkout, populate it from the resolved
// backup set, commit the result as a new revision, and always dismantle
// the checkout again, whether the run succeeded or not.
package checkout

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/paulschiretz/pgl-vault/pkg/backupset"
	"github.com/paulschiretz/pgl-vault/pkg/linkcopy"
	"github.com/paulschiretz/pgl-vault/pkg/plog"
	"github.com/paulschiretz/pgl-vault/pkg/store"
)

// sha3ProtocolVersion is the first backend major version whose commits
// should use the SHA3 hash mode.
const sha3ProtocolVersion = 2

// Options configure one Lifecycle.
type Options struct {
	ProjectName string
	Author      string
	// WorkDir is the parent for the scratch checkout directory.
	WorkDir string
	// ClearBeforePopulate deletes all tracked files from the fresh checkout
	// before population, so files gone from the source become removals in
	// the new revision.
	ClearBeforePopulate bool
	// GlobExclusion filters the resolved set through the spec's
	// exclude-match patterns right before population.
	GlobExclusion bool
}

// Result describes a completed backup run.
type Result struct {
	FileCount   int
	RevisionTag string
	Summary     string
}

// Lifecycle owns the checkout sequence for one repository.
type Lifecycle struct {
	store  *store.Store
	engine linkcopy.Engine
	opts   Options

	now func() time.Time
}

// New creates a Lifecycle. The store and engine are injected so tests can
// substitute a scripted executor and a failing engine.
func New(st *store.Store, engine linkcopy.Engine, opts Options) *Lifecycle {
	return &Lifecycle{
		store:  st,
		engine: engine,
		opts:   opts,
		now:    time.Now,
	}
}

// Run executes one full backup of the resolver's set and returns a summary
// of the committed revision. On any failure the scratch checkout is removed
// and the repository is left without a new revision.
func (l *Lifecycle) Run(ctx context.Context, resolver *backupset.Resolver) (Result, error) {
	if err := l.ensureRepo(ctx); err != nil {
		return Result{}, err
	}

	major, err := l.store.ProtocolVersion(ctx)
	if err != nil {
		return Result{}, err
	}
	useSHA3 := major >= sha3ProtocolVersion

	paths := resolver.Compute()
	if l.opts.GlobExclusion {
		if globs := resolver.ExcludeGlobs(); !globs.Empty() {
			before := len(paths)
			paths = globs.Filter(paths)
			plog.Debug("Applied exclusion patterns", "before", before, "after", len(paths))
		}
	}
	plog.Info("Backup set resolved", "files", len(paths))

	label := l.now().UTC().Format("2006-01-02")
	result := Result{FileCount: len(paths), RevisionTag: label}

	err = l.withCheckout(ctx, func(wc *store.WorkingCopy) error {
		if l.opts.ClearBeforePopulate {
			if err := l.clearTracked(ctx, wc); err != nil {
				return err
			}
		}

		if err := l.engine.Populate(ctx, wc.Dir(), paths); err != nil {
			return err
		}

		if err := wc.AddRemove(ctx); err != nil {
			return err
		}
		return wc.Commit(ctx, store.CommitOptions{
			Message:    "backup " + label,
			Tag:        label,
			Author:     l.opts.Author,
			AllowEmpty: true,
			UseSHA3:    useSHA3,
		})
	})
	if err != nil {
		return Result{}, err
	}

	summary, err := l.store.RecentSummary(ctx)
	if err != nil {
		plog.Warn("Could not read back revision summary", "error", err)
	} else {
		result.Summary = summary
	}
	plog.Info("Backup committed", "tag", label, "files", result.FileCount)
	return result, nil
}

// ensureRepo creates the repository on first use and verifies access on
// every later run.
func (l *Lifecycle) ensureRepo(ctx context.Context) error {
	if !l.store.Exists() {
		return l.store.Create(ctx, l.opts.ProjectName)
	}
	return l.store.CheckAccess()
}

// withCheckout opens a scratch working copy, runs fn inside it, and always
// tears the checkout down again. A teardown failure is only surfaced when
// fn itself succeeded, so the original error is never masked.
func (l *Lifecycle) withCheckout(ctx context.Context, fn func(*store.WorkingCopy) error) (retErr error) {
	dir, err := os.MkdirTemp(l.opts.WorkDir, "pgl-vault-checkout-")
	if err != nil {
		return fmt.Errorf("could not create checkout directory: %w", err)
	}

	wc, err := l.store.Open(ctx, dir)
	if err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			plog.Warn("Could not remove checkout directory", "dir", dir, "error", rmErr)
		}
		return err
	}

	defer func() {
		// Close with a fresh context so teardown still runs after a
		// cancellation aborted the backup itself.
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()

		closeErr := wc.Close(closeCtx)
		rmErr := os.RemoveAll(dir)

		if retErr != nil {
			if closeErr != nil {
				plog.Warn("Could not close working copy", "dir", dir, "error", closeErr)
			}
			if rmErr != nil {
				plog.Warn("Could not remove checkout directory", "dir", dir, "error", rmErr)
			}
			return
		}
		if closeErr != nil {
			retErr = closeErr
			return
		}
		if rmErr != nil {
			retErr = fmt.Errorf("could not remove checkout directory %s: %w", dir, rmErr)
		}
	}()

	return fn(wc)
}

// clearTracked deletes every file of the current revision from the checkout
// and prunes the directories left empty behind them.
func (l *Lifecycle) clearTracked(ctx context.Context, wc *store.WorkingCopy) error {
	tracked, err := wc.ListTracked(ctx)
	if err != nil {
		return err
	}
	if len(tracked) == 0 {
		return nil
	}
	plog.Debug("Clearing tracked files from checkout", "count", len(tracked))

	for _, rel := range tracked {
		path := filepath.Join(wc.Dir(), filepath.FromSlash(rel))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("could not clear tracked file %s: %w", path, err)
		}
	}
	return pruneEmptyDirs(wc.Dir())
}

// pruneEmptyDirs removes all empty directories below root, deepest first.
// The root itself is kept.
func pruneEmptyDirs(root string) error {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not scan checkout for empty directories: %w", err)
	}

	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		// Remove fails on non-empty directories, which is exactly the
		// filter we want, so the error is ignored.
		_ = os.Remove(dir)
	}
	return nil
}
