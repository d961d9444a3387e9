// Package config holds the per-run configuration: one Config is assembled
// from defaults and command-line flags at startup, validated once, and then
// treated as read-only by every component. Nothing in the system reads
// ambient global state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulschiretz/pgl-vault/pkg/plog"
	"github.com/paulschiretz/pgl-vault/pkg/setarchive"
	"github.com/paulschiretz/pgl-vault/pkg/util"
)

// Config is the run context for one backup invocation.
type Config struct {
	// SpecPath is the backup-set spec file (include/exclude/exclude-match).
	SpecPath string
	// RepoPath is the storage repository file.
	RepoPath string
	// ProjectName is recorded as repository metadata on creation. Defaults
	// to the repository file's base name.
	ProjectName string
	// StoreTool is the storage backend binary (fossil-style verbs).
	StoreTool string
	// CopyTool is the bulk hard-link binary (cpio-style pass-through).
	CopyTool string
	// Author is the commit author recorded on every revision.
	Author string
	// WorkDir is where the per-run checkout directory is created.
	WorkDir string

	LinkEngine   LinkEngine
	LinkWorkers  int
	BufferSizeKB int

	// ClearBeforePopulate removes previously tracked files from the checkout
	// before population, so deletions in the source show up as removals.
	ClearBeforePopulate bool
	// GlobExclusion applies exclude-match patterns at population time.
	GlobExclusion bool

	// ExportPath, when set, writes the backup set as a compressed tarball
	// after a successful commit.
	ExportPath   string
	ExportFormat setarchive.Format

	LogLevel string
}

// NewDefault returns the built-in defaults.
func NewDefault() Config {
	return Config{
		StoreTool:           "fossil",
		CopyTool:            "cpio",
		Author:              "pgl-vault",
		WorkDir:             os.TempDir(),
		LinkEngine:          CpioLinkEngine,
		LinkWorkers:         0,
		BufferSizeKB:        256,
		ClearBeforePopulate: true,
		GlobExclusion:       true,
		ExportFormat:        setarchive.TarGz,
		LogLevel:            "info",
	}
}

// MergeWithFlags overlays the values the user explicitly set on the command
// line over base. flagMap only contains keys for flags that were actually
// provided, so defaults survive untouched.
func MergeWithFlags(base Config, flagMap map[string]any) Config {
	merged := base

	if v, ok := flagMap["conf"].(string); ok {
		merged.SpecPath = v
	}
	if v, ok := flagMap["repo"].(string); ok {
		merged.RepoPath = v
	}
	if v, ok := flagMap["project"].(string); ok {
		merged.ProjectName = v
	}
	if v, ok := flagMap["store-tool"].(string); ok {
		merged.StoreTool = v
	}
	if v, ok := flagMap["copy-tool"].(string); ok {
		merged.CopyTool = v
	}
	if v, ok := flagMap["author"].(string); ok {
		merged.Author = v
	}
	if v, ok := flagMap["work-dir"].(string); ok {
		merged.WorkDir = v
	}
	if v, ok := flagMap["link-engine"].(LinkEngine); ok {
		merged.LinkEngine = v
	}
	if v, ok := flagMap["link-workers"].(int); ok {
		merged.LinkWorkers = v
	}
	if v, ok := flagMap["buffer-size-kb"].(int); ok {
		merged.BufferSizeKB = v
	}
	if v, ok := flagMap["clear-checkout"].(bool); ok {
		merged.ClearBeforePopulate = v
	}
	if v, ok := flagMap["glob-exclude"].(bool); ok {
		merged.GlobExclusion = v
	}
	if v, ok := flagMap["export"].(string); ok {
		merged.ExportPath = v
	}
	if v, ok := flagMap["export-format"].(setarchive.Format); ok {
		merged.ExportFormat = v
	}
	if v, ok := flagMap["log-level"].(string); ok {
		merged.LogLevel = v
	}
	return merged
}

// ValidationOptions select which requirements apply for the invoked command.
type ValidationOptions struct {
	RequireSpec bool
}

// Validate checks required fields and absolutizes every path so later steps
// never depend on the process working directory.
func (c *Config) Validate(opts ValidationOptions) error {
	if c.RepoPath == "" {
		return fmt.Errorf("a repository path is required")
	}
	if opts.RequireSpec && c.SpecPath == "" {
		return fmt.Errorf("a backup-set spec file is required")
	}

	var err error
	if c.RepoPath, err = util.AbsPath(c.RepoPath); err != nil {
		return fmt.Errorf("repository path invalid: %w", err)
	}
	if c.SpecPath != "" {
		if c.SpecPath, err = util.AbsPath(c.SpecPath); err != nil {
			return fmt.Errorf("spec path invalid: %w", err)
		}
	}
	if c.WorkDir == "" {
		c.WorkDir = os.TempDir()
	}
	if c.WorkDir, err = util.AbsPath(c.WorkDir); err != nil {
		return fmt.Errorf("work dir invalid: %w", err)
	}
	if c.ExportPath != "" {
		if c.ExportPath, err = util.AbsPath(c.ExportPath); err != nil {
			return fmt.Errorf("export path invalid: %w", err)
		}
	}

	if c.ProjectName == "" {
		base := filepath.Base(c.RepoPath)
		c.ProjectName = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if c.Author == "" {
		return fmt.Errorf("a commit author is required")
	}
	if c.LinkWorkers < 0 {
		return fmt.Errorf("link-workers must not be negative")
	}
	if c.BufferSizeKB < 0 {
		return fmt.Errorf("buffer-size-kb must not be negative")
	}
	return nil
}

// LogSummary logs the effective configuration at the start of a run.
func (c Config) LogSummary() {
	plog.Info("Run configuration",
		"spec", c.SpecPath,
		"repo", c.RepoPath,
		"project", c.ProjectName,
		"storeTool", c.StoreTool,
		"copyTool", c.CopyTool,
		"linkEngine", c.LinkEngine,
		"clearCheckout", c.ClearBeforePopulate,
		"globExclude", c.GlobExclusion,
	)
	if c.ExportPath != "" {
		plog.Info("Export enabled", "path", c.ExportPath, "format", c.ExportFormat)
	}
}
