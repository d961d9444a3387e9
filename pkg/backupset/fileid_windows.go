//go:build windows

package backupset

import "path/filepath"

// fileID identifies a file by its cleaned path. Windows has no cheap
// dev/inode pair, and the traversal never emits the same cleaned path twice,
// so path identity is sufficient there.
type fileID string

func identify(path string) (fileID, bool) {
	return fileID(filepath.Clean(path)), true
}
