//go:build windows

package linkcopy

// preserveOwner is a no-op on windows; ownership does not map to uid/gid.
func preserveOwner(src, dst string) {}
