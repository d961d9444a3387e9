//go:build windows

package backupset

import "errors"

func mkfifo(path string) error {
	return errors.New("fifos are not supported on windows")
}
