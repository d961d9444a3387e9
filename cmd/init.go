package cmd

import (
	"context"
	"fmt"

	"github.com/paulschiretz/pgl-vault/pkg/config"
	"github.com/paulschiretz/pgl-vault/pkg/plog"
	"github.com/paulschiretz/pgl-vault/pkg/store"
)

// RunInit creates a new, empty backup repository. Backup runs create the
// repository on demand too; init exists so the repository can be provisioned
// ahead of time with an explicit project name.
func RunInit(ctx context.Context, flagMap map[string]any) error {
	runConfig := config.MergeWithFlags(config.NewDefault(), flagMap)
	if err := runConfig.Validate(config.ValidationOptions{}); err != nil {
		return err
	}

	plog.SetLevel(plog.LevelFromString(runConfig.LogLevel))

	st := store.New(runConfig.StoreTool, runConfig.RepoPath)
	if st.Exists() {
		return fmt.Errorf("repository %s already exists", runConfig.RepoPath)
	}
	if err := st.Create(ctx, runConfig.ProjectName); err != nil {
		return err
	}

	plog.Info("Repository created", "repo", runConfig.RepoPath, "project", runConfig.ProjectName)
	return nil
}
