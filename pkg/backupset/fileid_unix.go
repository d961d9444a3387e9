//go:build !windows

package backupset

import "golang.org/x/sys/unix"

// fileID identifies a physical file on disk. Two directory entries that are
// hard links to the same inode share one fileID.
type fileID struct {
	dev uint64
	ino uint64
}

func identify(path string) (fileID, bool) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return fileID{}, false
	}
	return fileID{dev: uint64(st.Dev), ino: uint64(st.Ino)}, true
}
