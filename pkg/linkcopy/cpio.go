package linkcopy

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/paulschiretz/pgl-vault/pkg/plog"
)

// benignTrailer matches the block-count report a cpio-style tool prints on
// stderr as part of normal exit reporting (e.g. "3 blocks"). When that
// trailer is the entire failure text, the run did all its work and the
// non-zero status is noise.
var benignTrailer = regexp.MustCompile(`\A\s*\d+\s+blocks?\.?\s*\z`)

// CpioEngine populates the checkout through an external pass-through copy
// tool. The full path list is fed as one newline-delimited stream on stdin;
// the tool hard-links each file under the destination, creating directories
// and preserving timestamps and ownership (`-p -d -l -m -u`).
type CpioEngine struct {
	toolPath string
}

func NewCpioEngine(toolPath string) *CpioEngine {
	return &CpioEngine{toolPath: toolPath}
}

func (e *CpioEngine) Populate(ctx context.Context, destDir string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, e.toolPath, "-p", "-d", "-l", "-m", "-u", destDir)
	cmd.Stdin = strings.NewReader(strings.Join(paths, "\n") + "\n")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	plog.Debug("Populating checkout", "tool", e.toolPath, "dest", destDir, "files", len(paths))
	if err := cmd.Run(); err != nil {
		if isBenignTrailer(stderr.String()) {
			plog.Debug("Copy tool exited with benign trailer", "output", strings.TrimSpace(stderr.String()))
			return nil
		}
		return fmt.Errorf("%s %s: %s: %w",
			e.toolPath, err, strings.TrimSpace(stderr.String()), ErrPopulateFailed)
	}
	return nil
}

func isBenignTrailer(output string) bool {
	return benignTrailer.MatchString(output)
}
