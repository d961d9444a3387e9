package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/paulschiretz/pgl-vault/pkg/backupset"
	"github.com/paulschiretz/pgl-vault/pkg/buildinfo"
	"github.com/paulschiretz/pgl-vault/pkg/checkout"
	"github.com/paulschiretz/pgl-vault/pkg/config"
	"github.com/paulschiretz/pgl-vault/pkg/linkcopy"
	"github.com/paulschiretz/pgl-vault/pkg/metafile"
	"github.com/paulschiretz/pgl-vault/pkg/plog"
	"github.com/paulschiretz/pgl-vault/pkg/setarchive"
	"github.com/paulschiretz/pgl-vault/pkg/setspec"
	"github.com/paulschiretz/pgl-vault/pkg/store"
)

// RunBackup resolves the backup set from the spec file and commits it as a
// new revision.
func RunBackup(ctx context.Context, flagMap map[string]any) error {
	runConfig := config.MergeWithFlags(config.NewDefault(), flagMap)
	if err := runConfig.Validate(config.ValidationOptions{RequireSpec: true}); err != nil {
		return err
	}

	plog.SetLevel(plog.LevelFromString(runConfig.LogLevel))
	runConfig.LogSummary()

	// Resolve the backup set before touching the repository: a spec error
	// must not leave any trace in the store.
	resolver := backupset.NewResolver(backupset.NewScanner())
	if err := setspec.EvaluateFile(runConfig.SpecPath, resolver); err != nil {
		return err
	}

	st := store.New(runConfig.StoreTool, runConfig.RepoPath)
	lifecycle := checkout.New(st, newLinkEngine(runConfig), checkout.Options{
		ProjectName:         runConfig.ProjectName,
		Author:              runConfig.Author,
		WorkDir:             runConfig.WorkDir,
		ClearBeforePopulate: runConfig.ClearBeforePopulate,
		GlobExclusion:       runConfig.GlobExclusion,
	})

	startTime := time.Now()
	result, err := lifecycle.Run(ctx, resolver)
	duration := time.Since(startTime).Round(time.Millisecond)
	if err != nil {
		return err // The error will be logged with full details by main()
	}

	meta := &metafile.Content{
		TimestampUTC: time.Now().UTC(),
		Project:      runConfig.ProjectName,
		FileCount:    result.FileCount,
		RevisionTag:  result.RevisionTag,
	}
	if err := metafile.Write(runConfig.RepoPath, meta); err != nil {
		// The revision is already committed, losing the sidecar is not fatal.
		plog.Warn("Could not write repository metafile", "error", err)
	}

	if runConfig.ExportPath != "" {
		if err := exportSet(ctx, runConfig, resolver); err != nil {
			return err
		}
	}

	if result.Summary != "" {
		fmt.Println(result.Summary)
	}
	plog.Info(buildinfo.Name+" finished successfully.", "duration", duration, "files", result.FileCount)
	return nil
}

// newLinkEngine builds the population engine selected by the configuration.
func newLinkEngine(runConfig config.Config) linkcopy.Engine {
	if runConfig.LinkEngine == config.NativeLinkEngine {
		return linkcopy.NewNativeEngine(runConfig.LinkWorkers, runConfig.BufferSizeKB)
	}
	return linkcopy.NewCpioEngine(runConfig.CopyTool)
}

// exportSet writes the resolved backup set as a compressed tarball. Glob
// exclusion applies here exactly as it did for the committed revision.
func exportSet(ctx context.Context, runConfig config.Config, resolver *backupset.Resolver) error {
	paths := resolver.Compute()
	if runConfig.GlobExclusion {
		if globs := resolver.ExcludeGlobs(); !globs.Empty() {
			paths = globs.Filter(paths)
		}
	}

	exporter := setarchive.NewExporter(runConfig.BufferSizeKB)
	if err := exporter.Export(ctx, runConfig.ExportPath, runConfig.ExportFormat, paths); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	plog.Info("Backup set exported", "path", runConfig.ExportPath, "format", runConfig.ExportFormat)
	return nil
}
