package backupset

import (
	"path/filepath"
	"strings"

	"github.com/paulschiretz/pgl-vault/pkg/plog"
)

type globMatchType int

const (
	prefixMatch globMatchType = iota
	suffixMatch
	patternMatch
)

// GlobSet holds categorized shell-glob exclusion patterns for efficient
// matching against absolute candidate paths.
//
// A pattern without a path separator matches against the path's basename
// (so `*.tar.gz` excludes every tarball anywhere in the set); a pattern
// containing a separator matches against the full path.
type GlobSet struct {
	// literals are exact full-path matches, the fastest to check.
	literals map[string]struct{}
	// basenameLiterals are exact basename matches (e.g. "core").
	basenameLiterals map[string]struct{}
	// nonLiterals need per-candidate work (prefix, suffix, or a full glob).
	nonLiterals []glob
}

// glob stores one pre-analyzed non-literal pattern.
type glob struct {
	pattern       string        // original pattern, for logging
	clean         string        // wildcard-stripped form for prefix/suffix, full pattern otherwise
	matchType     globMatchType
	matchBasename bool
}

// NewGlobSet analyzes and categorizes patterns to enable optimized matching.
func NewGlobSet(patterns []string) *GlobSet {
	set := &GlobSet{
		literals:         make(map[string]struct{}),
		basenameLiterals: make(map[string]struct{}),
		nonLiterals:      make([]glob, 0, len(patterns)),
	}

	for _, p := range patterns {
		p = filepath.ToSlash(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		basename := !strings.Contains(p, "/")

		if !strings.ContainsAny(p, "*?[]") {
			if basename {
				set.basenameLiterals[p] = struct{}{}
			} else {
				set.literals[p] = struct{}{}
			}
			continue
		}

		switch {
		case strings.HasSuffix(p, "*") && !strings.ContainsAny(p[:len(p)-1], "*?[]"):
			// A pattern like `temp_*` or `/var/cache/*`.
			set.nonLiterals = append(set.nonLiterals, glob{
				pattern:       p,
				clean:         strings.TrimSuffix(p, "*"),
				matchType:     prefixMatch,
				matchBasename: basename,
			})
		case strings.HasPrefix(p, "*") && !strings.ContainsAny(p[1:], "*?[]"):
			// A pattern like `*.tar.gz` or `*.o`.
			set.nonLiterals = append(set.nonLiterals, glob{
				pattern:       p,
				clean:         p[1:],
				matchType:     suffixMatch,
				matchBasename: basename,
			})
		default:
			set.nonLiterals = append(set.nonLiterals, glob{
				pattern:       p,
				clean:         p,
				matchType:     patternMatch,
				matchBasename: basename,
			})
		}
	}
	return set
}

// Empty reports whether the set holds no patterns at all.
func (g *GlobSet) Empty() bool {
	return len(g.literals) == 0 && len(g.basenameLiterals) == 0 && len(g.nonLiterals) == 0
}

// Matches reports whether absPath matches any pattern in the set.
func (g *GlobSet) Matches(absPath string) bool {
	path := filepath.ToSlash(absPath)
	base := filepath.Base(path)

	if _, ok := g.literals[path]; ok {
		return true
	}
	if _, ok := g.basenameLiterals[base]; ok {
		return true
	}

	for _, p := range g.nonLiterals {
		candidate := path
		if p.matchBasename {
			candidate = base
		}

		switch p.matchType {
		case prefixMatch:
			if strings.HasPrefix(candidate, p.clean) {
				return true
			}
		case suffixMatch:
			if strings.HasSuffix(candidate, p.clean) {
				return true
			}
		case patternMatch:
			match, err := filepath.Match(p.clean, candidate)
			if err != nil {
				// Log the invalid pattern but keep checking the others.
				plog.Warn("Invalid exclusion pattern", "pattern", p.pattern, "error", err)
				continue
			}
			if match {
				return true
			}
		}
	}
	return false
}

// Filter returns the entries of paths that match no pattern, preserving
// order. An empty set returns paths unchanged.
func (g *GlobSet) Filter(paths []string) []string {
	if g.Empty() {
		return paths
	}
	kept := make([]string, 0, len(paths))
	for _, p := range paths {
		if g.Matches(p) {
			plog.Debug("Excluded by pattern", "path", p)
			continue
		}
		kept = append(kept, p)
	}
	return kept
}
