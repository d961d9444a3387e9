// Package metafile writes a small JSON sidecar next to the repository after
// every successful backup. The sidecar is informational: it lets other
// tooling (and humans) see the last run without opening the repository.
package metafile

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/paulschiretz/pgl-vault/pkg/buildinfo"
	"github.com/paulschiretz/pgl-vault/pkg/util"
)

// Suffix is appended to the repository path to form the sidecar path.
const Suffix = ".meta.json"

// Content holds the metadata of the most recent backup run.
type Content struct {
	Version      string    `json:"version"`
	TimestampUTC time.Time `json:"timestampUTC"`
	Project      string    `json:"project"`
	FileCount    int       `json:"fileCount"`
	RevisionTag  string    `json:"revisionTag"`
}

// PathFor returns the sidecar path for a repository file.
func PathFor(repoPath string) string {
	return repoPath + Suffix
}

// Write creates or replaces the sidecar for repoPath.
func Write(repoPath string, content *Content) error {
	if content.Version == "" {
		content.Version = buildinfo.Version
	}
	jsonData, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal meta data: %w", err)
	}

	metaFilePath := PathFor(repoPath)
	if err := os.WriteFile(metaFilePath, jsonData, util.UserGroupWritableFilePerms); err != nil {
		return fmt.Errorf("could not write meta file %s: %w", metaFilePath, err)
	}
	return nil
}

// Read opens and parses the sidecar for repoPath.
func Read(repoPath string) (Content, error) {
	metaFilePath := PathFor(repoPath)
	metaFile, err := os.Open(metaFilePath)
	if err != nil {
		// os.IsNotExist errors are handled by the caller.
		return Content{}, err
	}
	defer metaFile.Close()

	var content Content
	if err := json.NewDecoder(metaFile).Decode(&content); err != nil {
		return Content{}, fmt.Errorf("could not parse metafile %s: %w. It may be corrupt", metaFilePath, err)
	}
	return content, nil
}
