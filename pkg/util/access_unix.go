//go:build !windows

package util

import "golang.org/x/sys/unix"

// Readable reports whether the calling identity may read the path.
// The check uses the real uid/gid, matching what a subsequent open will see.
func Readable(path string) bool {
	return unix.Access(path, unix.R_OK) == nil
}

// Writable reports whether the calling identity may write to the path.
func Writable(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}
