// Package linkcopy populates a checkout directory from a list of absolute
// source paths by hard-linking each file into the corresponding relative
// location under the destination, creating intermediate directories and
// overwriting unconditionally.
//
// Two engines exist: CpioEngine drives an external cpio-style pass-through
// tool as one bulk pipeline, NativeEngine does the linking in-process.
package linkcopy

import (
	"context"
	"errors"
)

// ErrPopulateFailed is wrapped by every population failure.
var ErrPopulateFailed = errors.New("checkout population failed")

// Engine materializes source paths under destDir.
type Engine interface {
	Populate(ctx context.Context, destDir string, paths []string) error
}
