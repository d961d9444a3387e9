package linkcopy

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/paulschiretz/pgl-vault/pkg/pool"
	"github.com/paulschiretz/pgl-vault/pkg/util"
)

const defaultBufferSizeKB = 256

// NativeEngine hard-links each source path into the destination tree without
// an external tool. Sources on another device, where linking is impossible,
// fall back to a metadata-preserving copy. Symlinks are re-created as
// symlinks pointing at their original targets.
type NativeEngine struct {
	workers int
	bufPool *pool.FixedBufferPool
}

func NewNativeEngine(workers, bufferSizeKB int) *NativeEngine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if bufferSizeKB <= 0 {
		bufferSizeKB = defaultBufferSizeKB
	}
	return &NativeEngine{
		workers: workers,
		bufPool: pool.NewFixedBuffer(int64(bufferSizeKB) * 1024),
	}
}

func (e *NativeEngine) Populate(ctx context.Context, destDir string, paths []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, p := range paths {
		p := p
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return e.populateOne(p, destDir)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%v: %w", err, ErrPopulateFailed)
	}
	return nil
}

func (e *NativeEngine) populateOne(src, destDir string) error {
	dst := filepath.Join(destDir, relativized(src))
	if err := os.MkdirAll(filepath.Dir(dst), util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("cannot create directory for %s: %w", dst, err)
	}

	info, err := os.Lstat(src)
	if err != nil {
		return fmt.Errorf("cannot stat %s: %w", src, err)
	}

	// Overwrite unconditionally.
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot replace %s: %w", dst, err)
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return fmt.Errorf("cannot read symlink %s: %w", src, err)
		}
		if err := os.Symlink(target, dst); err != nil {
			return fmt.Errorf("cannot recreate symlink %s: %w", dst, err)
		}
		return nil
	}

	if err := os.Link(src, dst); err == nil {
		return nil
	}
	// Hard link refused (typically a device boundary): copy instead.
	return e.copyFile(src, dst, info)
}

func (e *NativeEngine) copyFile(src, dst string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", dst, err)
	}

	buf := e.bufPool.Get()
	_, copyErr := io.CopyBuffer(out, in, *buf)
	e.bufPool.Put(buf)

	if closeErr := out.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		return fmt.Errorf("cannot copy %s: %w", src, copyErr)
	}

	// Timestamps must be set after the file is closed, or the close flush
	// would bump them again.
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("cannot preserve times on %s: %w", dst, err)
	}
	preserveOwner(src, dst)
	return nil
}

// relativized maps an absolute source path to its location under the
// checkout: the path with root (and volume, on windows) stripped.
func relativized(abs string) string {
	p := abs
	if vol := filepath.VolumeName(p); vol != "" {
		p = p[len(vol):]
	}
	return strings.TrimLeft(p, `/\`)
}
