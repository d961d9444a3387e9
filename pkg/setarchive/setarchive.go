// Package setarchive writes the resolved backup set as a compressed tarball.
// The export is an optional sidecar to the committed revision, useful for
// shipping a point-in-time copy off the machine without touching the
// repository.
package setarchive

import (
	"archive/tar"
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/paulschiretz/pgl-vault/pkg/plog"
	"github.com/paulschiretz/pgl-vault/pkg/pool"
)

const defaultBufferSizeKB = 256

// Exporter writes set archives. One Exporter may serve many exports; the
// copy buffer pool is shared across them.
type Exporter struct {
	bufPool *pool.FixedBufferPool
}

func NewExporter(bufferSizeKB int) *Exporter {
	if bufferSizeKB <= 0 {
		bufferSizeKB = defaultBufferSizeKB
	}
	return &Exporter{bufPool: pool.NewFixedBuffer(int64(bufferSizeKB) * 1024)}
}

// Export writes paths into a compressed tar archive at archivePath. Entries
// are stored under the same root-stripped layout the checkout uses. The
// archive is written to a temp file and renamed into place, so a failed
// export never leaves a partial archive behind.
func (e *Exporter) Export(ctx context.Context, archivePath string, format Format, paths []string) (retErr error) {
	plog.Info("Exporting backup set", "archive", archivePath, "format", format, "files", len(paths))

	f, err := os.CreateTemp(filepath.Dir(archivePath), "pgl-vault-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	tempPath := f.Name()
	defer func() {
		if retErr != nil {
			_ = f.Close()
			_ = os.Remove(tempPath)
		}
	}()

	bw := bufio.NewWriter(f)

	var cw io.WriteCloser
	switch format {
	case TarGz:
		cw = pgzip.NewWriter(bw)
	case TarZst:
		zw, err := zstd.NewWriter(bw)
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		cw = zw
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}

	tw := tar.NewWriter(cw)
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := e.addEntry(tw, p); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("failed to finalize compression: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}

	if err := os.Rename(tempPath, archivePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	return nil
}

func (e *Exporter) addEntry(tw *tar.Writer, path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("cannot stat %s: %w", path, err)
	}

	link := ""
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return fmt.Errorf("cannot read symlink %s: %w", path, err)
		}
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return fmt.Errorf("cannot build header for %s: %w", path, err)
	}
	header.Name = entryName(path)

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("cannot write header for %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer in.Close()

	buf := e.bufPool.Get()
	_, err = io.CopyBuffer(tw, in, *buf)
	e.bufPool.Put(buf)
	if err != nil {
		return fmt.Errorf("cannot archive %s: %w", path, err)
	}
	return nil
}

// entryName maps an absolute path to its archive entry name: forward
// slashes, root and volume stripped, matching the checkout layout.
func entryName(abs string) string {
	p := filepath.ToSlash(abs)
	if vol := filepath.VolumeName(abs); vol != "" {
		p = p[len(vol):]
	}
	return strings.TrimLeft(p, "/")
}
