//go:build windows

package util

import "os"

// Readable reports whether the path can be opened for reading.
// Windows has no access(2); probing the open is the reliable check.
func Readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// Writable reports whether the path can be opened for writing.
func Writable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		// Probe with a throwaway file, the only portable answer for directories.
		probe, err := os.CreateTemp(path, ".pgl-vault-probe-*")
		if err != nil {
			return false
		}
		name := probe.Name()
		_ = probe.Close()
		_ = os.Remove(name)
		return true
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
