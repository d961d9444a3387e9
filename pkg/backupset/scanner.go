package backupset

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/paulschiretz/pgl-vault/pkg/plog"
	"github.com/paulschiretz/pgl-vault/pkg/util"
)

// Scanner expands raw path arguments into the concrete regular files and
// symlinks beneath them. Unreadable paths are skipped silently rather than
// failing the run; the caller decides what to do with an empty result.
type Scanner struct {
	// privileged disables all readability gating. The superuser can open
	// anything regardless of mode bits, so access probes would only produce
	// false negatives for it.
	privileged bool
}

// NewScanner creates a scanner whose readability gating matches the calling
// identity: running as root bypasses the gate entirely.
func NewScanner() *Scanner {
	return &Scanner{privileged: os.Geteuid() == 0}
}

// NewScannerWithPrivilege creates a scanner with an explicit privilege
// setting. Used by tests and by callers that drop privileges themselves.
func NewScannerWithPrivilege(privileged bool) *Scanner {
	return &Scanner{privileged: privileged}
}

// Resolve normalizes path to an absolute form and expands it.
//
// A regular file or symlink resolves to itself. A directory resolves to every
// regular file and symlink contained in it, recursively, entering only
// readable subdirectories. Sockets, devices and fifos resolve to nothing.
// A path that is missing or unreadable resolves to nothing.
func (s *Scanner) Resolve(path string) []string {
	abs, err := util.AbsPath(path)
	if err != nil {
		plog.Warn("Skipping unresolvable path", "path", path, "error", err)
		return nil
	}

	info, err := os.Lstat(abs)
	if err != nil {
		plog.Debug("Skipping missing path", "path", abs)
		return nil
	}
	if !s.privileged && !util.Readable(abs) {
		plog.Debug("Skipping unreadable path", "path", abs)
		return nil
	}

	mode := info.Mode()
	switch {
	case mode.IsRegular() || mode&fs.ModeSymlink != 0:
		return []string{abs}
	case mode.IsDir():
		return s.walkDir(abs)
	default:
		// Sockets, devices, fifos: not backed up.
		return nil
	}
}

// walkDir traverses root and collects every contained regular file and
// symlink. Directories themselves are never yielded. A physical file reached
// through two directory entries (hard links inside the tree) is yielded once.
func (s *Scanner) walkDir(root string) []string {
	var out []string
	seen := make(map[fileID]struct{})

	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Traversal is best-effort: an entry that vanished or cannot be
			// listed is skipped, never fatal.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != root && !s.privileged && !util.Readable(p) {
				plog.Debug("Skipping unreadable directory", "path", p)
				return fs.SkipDir
			}
			return nil
		}

		t := d.Type()
		if !t.IsRegular() && t&fs.ModeSymlink == 0 {
			return nil
		}
		if !s.privileged && !util.Readable(p) {
			plog.Debug("Skipping unreadable file", "path", p)
			return nil
		}

		if id, ok := identify(p); ok {
			if _, dup := seen[id]; dup {
				return nil
			}
			seen[id] = struct{}{}
		}
		out = append(out, p)
		return nil
	})
	return out
}
