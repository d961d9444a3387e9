package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/paulschiretz/pgl-vault/pkg/config"
	"github.com/paulschiretz/pgl-vault/pkg/metafile"
	"github.com/paulschiretz/pgl-vault/pkg/plog"
	"github.com/paulschiretz/pgl-vault/pkg/store"
)

// RunLog prints the most recent revision of a repository, plus the sidecar
// metadata of the last run when present.
func RunLog(ctx context.Context, flagMap map[string]any) error {
	runConfig := config.MergeWithFlags(config.NewDefault(), flagMap)
	if err := runConfig.Validate(config.ValidationOptions{}); err != nil {
		return err
	}

	plog.SetLevel(plog.LevelFromString(runConfig.LogLevel))

	st := store.New(runConfig.StoreTool, runConfig.RepoPath)
	if !st.Exists() {
		return fmt.Errorf("repository %s does not exist", runConfig.RepoPath)
	}

	summary, err := st.RecentSummary(ctx)
	if err != nil {
		return err
	}
	fmt.Print(summary)

	meta, err := metafile.Read(runConfig.RepoPath)
	switch {
	case os.IsNotExist(err):
		// Older repositories have no sidecar.
	case err != nil:
		plog.Warn("Could not read repository metafile", "error", err)
	default:
		fmt.Printf("Last run: %s, %d files (pgl-vault %s)\n",
			meta.TimestampUTC.Format("2006-01-02 15:04:05 UTC"), meta.FileCount, meta.Version)
	}
	return nil
}
