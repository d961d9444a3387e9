package backupset

import (
	"slices"
	"sort"
)

// Resolver accumulates include and exclude paths through a Scanner and
// computes the final backup list. One Resolver serves exactly one run; the
// computed list is cached and immutable afterwards.
type Resolver struct {
	scanner  *Scanner
	includes []string
	excludes []string
	globs    []string

	computed []string
	done     bool
}

func NewResolver(scanner *Scanner) *Resolver {
	return &Resolver{scanner: scanner}
}

// AddInclude expands each raw path through the scanner and appends the
// results to the include set. Later calls add to earlier ones.
func (r *Resolver) AddInclude(paths ...string) {
	for _, p := range paths {
		r.includes = append(r.includes, r.scanner.Resolve(p)...)
	}
}

// AddExclude expands each raw path through the scanner and appends the
// results to the exclude set. Later calls add to earlier ones.
func (r *Resolver) AddExclude(paths ...string) {
	for _, p := range paths {
		r.excludes = append(r.excludes, r.scanner.Resolve(p)...)
	}
}

// SetExcludeGlobs replaces the current glob pattern list.
func (r *Resolver) SetExcludeGlobs(patterns []string) {
	r.globs = slices.Clone(patterns)
}

// ExcludeGlobs returns the matcher for the configured glob patterns.
//
// Glob patterns are deliberately NOT folded into Compute: they are applied
// against the computed list at population time. A path excluded only by glob
// therefore still appears in the computed list and in any diagnostic dump of
// it. This asymmetry is long-standing, documented behavior.
func (r *Resolver) ExcludeGlobs() *GlobSet {
	return NewGlobSet(r.globs)
}

// Compute returns the backup list: the include set minus the exclude set by
// exact path equality, deduplicated and sorted byte-wise for a deterministic,
// platform-independent order. The first call fixes the result; subsequent
// calls return the cached list.
func (r *Resolver) Compute() []string {
	if r.done {
		return r.computed
	}

	excluded := make(map[string]struct{}, len(r.excludes))
	for _, p := range r.excludes {
		excluded[p] = struct{}{}
	}

	seen := make(map[string]struct{}, len(r.includes))
	list := make([]string, 0, len(r.includes))
	for _, p := range r.includes {
		if _, ok := excluded[p]; ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		list = append(list, p)
	}
	sort.Strings(list)

	r.computed = list
	r.done = true
	return r.computed
}
