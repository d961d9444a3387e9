//go:build !windows

package linkcopy

import (
	"os"

	"golang.org/x/sys/unix"
)

// preserveOwner carries uid/gid over to the copy. Best effort: an unprivileged
// run cannot chown and the copy is still valid backup content.
func preserveOwner(src, dst string) {
	var st unix.Stat_t
	if err := unix.Lstat(src, &st); err != nil {
		return
	}
	_ = os.Lchown(dst, int(st.Uid), int(st.Gid))
}
