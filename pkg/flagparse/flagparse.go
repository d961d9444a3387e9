// Package flagparse turns command-line arguments into a Command and a map of
// the flags the user explicitly set. The map only contains provided flags, so
// the config layer can overlay it over its defaults without clobbering them.
package flagparse

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulschiretz/pgl-vault/pkg/buildinfo"
	"github.com/paulschiretz/pgl-vault/pkg/config"
	"github.com/paulschiretz/pgl-vault/pkg/setarchive"
)

// cliFlags holds pointers to all possible command-line flags.
// Fields are pointers so we can distinguish between "not registered for this
// command" (nil) and "registered but not set by user" (non-nil pointer to
// zero value).
type cliFlags struct {
	// Global
	LogLevel *string

	// Shared: Backup / Init / Log
	Repo      *string
	Project   *string
	StoreTool *string

	// Backup specific
	Conf          *string
	CopyTool      *string
	Author        *string
	WorkDir       *string
	LinkEngine    *string
	LinkWorkers   *int
	BufferSizeKB  *int
	ClearCheckout *bool
	GlobExclude   *bool
	Export        *string
	ExportFormat  *string
}

func registerGlobalFlags(fs *flag.FlagSet, f *cliFlags) {
	f.LogLevel = fs.String("log-level", "info", "Set the logging level: 'debug', 'info', 'warn', 'error'.")
}

func registerRepoFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Repo = fs.String("repo", "", "Path to the backup repository file. (Required)")
	f.Project = fs.String("project", "", "Project name recorded in the repository. Defaults to the repository file name.")
	f.StoreTool = fs.String("store-tool", "fossil", "Storage backend executable.")
}

func registerBackupFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Conf = fs.String("conf", "", "Path to the backup-set spec file. (Required)")
	f.CopyTool = fs.String("copy-tool", "cpio", "Pass-through copy executable used by the cpio link engine.")
	f.Author = fs.String("author", "pgl-vault", "Author recorded on every commit.")
	f.WorkDir = fs.String("work-dir", "", "Directory for the temporary checkout. Defaults to the system temp directory.")
	f.LinkEngine = fs.String("link-engine", "cpio", "Checkout population engine: 'cpio' or 'native'.")
	f.LinkWorkers = fs.Int("link-workers", 0, "Number of worker goroutines for the native link engine (0 = NumCPU).")
	f.BufferSizeKB = fs.Int("buffer-size-kb", 0, "Size of the I/O buffer in kilobytes for file copies and export compression.")
	f.ClearCheckout = fs.Bool("clear-checkout", true, "Remove previously tracked files from the checkout before populating, so source deletions become removals.")
	f.GlobExclude = fs.Bool("glob-exclude", true, "Apply exclude-match glob patterns when populating the checkout.")
	f.Export = fs.String("export", "", "Write the backup set as a compressed tarball to this path after a successful commit.")
	f.ExportFormat = fs.String("export-format", "", "Export archive format: 'tar.gz' or 'tar.zst'.")
}

// Parse parses the provided arguments (usually os.Args[1:]) and returns the
// command and the map of explicitly set flags.
func Parse(args []string) (Command, map[string]any, error) {
	if len(args) == 0 {
		fs := flag.NewFlagSet("main", flag.ContinueOnError)
		printTopLevelUsage(fs)
		return None, nil, nil
	}

	cmdStr := strings.ToLower(args[0])

	if cmdStr == "help" || cmdStr == "-h" || cmdStr == "-help" || cmdStr == "--help" {
		fs := flag.NewFlagSet("main", flag.ContinueOnError)
		printTopLevelUsage(fs)
		return None, nil, nil
	}

	command, err := ParseCommand(cmdStr)
	if err != nil {
		return None, nil, err
	}

	f := &cliFlags{}

	switch command {
	case Backup:
		fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
		registerGlobalFlags(fs, f)
		registerRepoFlags(fs, f)
		registerBackupFlags(fs, f)

		fs.Usage = func() {
			printSubcommandUsage(command, "Resolve the backup set and commit it as a new revision.", fs)
		}

		if err := fs.Parse(args[1:]); err != nil {
			return command, nil, err
		}
		flagMap, err := flagsToMap(fs, f)
		return command, flagMap, err

	case Init:
		fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
		registerGlobalFlags(fs, f)
		registerRepoFlags(fs, f)

		fs.Usage = func() {
			printSubcommandUsage(command, "Create a new, empty backup repository.", fs)
		}

		if err := fs.Parse(args[1:]); err != nil {
			return command, nil, err
		}
		flagMap, err := flagsToMap(fs, f)
		return command, flagMap, err

	case Log:
		fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
		registerGlobalFlags(fs, f)
		registerRepoFlags(fs, f)

		fs.Usage = func() {
			printSubcommandUsage(command, "Show the most recent revision of a backup repository.", fs)
		}

		if err := fs.Parse(args[1:]); err != nil {
			return command, nil, err
		}
		flagMap, err := flagsToMap(fs, f)
		return command, flagMap, err

	case Version:
		return command, nil, nil

	default:
		return None, nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

func flagsToMap(fs *flag.FlagSet, f *cliFlags) (map[string]any, error) {
	// Only flags the user explicitly set end up in the map. The config layer
	// overlays it on its defaults.
	usedFlags := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { usedFlags[fl.Name] = true })

	flagMap := make(map[string]any)

	addIfUsed(flagMap, usedFlags, "log-level", f.LogLevel)

	addIfUsed(flagMap, usedFlags, "repo", f.Repo)
	addIfUsed(flagMap, usedFlags, "project", f.Project)
	addIfUsed(flagMap, usedFlags, "store-tool", f.StoreTool)

	addIfUsed(flagMap, usedFlags, "conf", f.Conf)
	addIfUsed(flagMap, usedFlags, "copy-tool", f.CopyTool)
	addIfUsed(flagMap, usedFlags, "author", f.Author)
	addIfUsed(flagMap, usedFlags, "work-dir", f.WorkDir)
	addIfUsed(flagMap, usedFlags, "link-workers", f.LinkWorkers)
	addIfUsed(flagMap, usedFlags, "buffer-size-kb", f.BufferSizeKB)
	addIfUsed(flagMap, usedFlags, "clear-checkout", f.ClearCheckout)
	addIfUsed(flagMap, usedFlags, "glob-exclude", f.GlobExclude)
	addIfUsed(flagMap, usedFlags, "export", f.Export)

	// Flags that require parsing into typed values.
	if f.LinkEngine != nil && usedFlags["link-engine"] {
		engine, err := config.ParseLinkEngine(*f.LinkEngine)
		if err != nil {
			return nil, err
		}
		flagMap["link-engine"] = engine
	}
	if f.ExportFormat != nil && usedFlags["export-format"] {
		format, err := setarchive.ParseFormat(*f.ExportFormat)
		if err != nil {
			return nil, err
		}
		flagMap["export-format"] = format
	}

	return flagMap, nil
}

// addIfUsed adds the value of ptr to flagMap if ptr is not nil and the flag was set.
func addIfUsed[T any](flagMap map[string]any, usedFlags map[string]bool, name string, ptr *T) {
	if ptr != nil && usedFlags[name] {
		flagMap[name] = *ptr
	}
}

// printTopLevelUsage prints the main help message.
func printTopLevelUsage(fs *flag.FlagSet) {
	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(fs.Output(), "%s(%s) ", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(fs.Output(), "An incremental backup tool with version-controlled history.\n\n")
	fmt.Fprintf(fs.Output(), "Usage: %s <command> [flags]\n\n", execName)
	fmt.Fprintf(fs.Output(), "Commands:\n")
	fmt.Fprintf(fs.Output(), "  backup      Resolve the backup set and commit it as a new revision\n")
	fmt.Fprintf(fs.Output(), "  init        Create a new, empty backup repository\n")
	fmt.Fprintf(fs.Output(), "  log         Show the most recent revision of a repository\n")
	fmt.Fprintf(fs.Output(), "  version     Print the application version\n")
	fmt.Fprintf(fs.Output(), "\nRun '%s <command> -help' for more information on a command.\n", execName)
}

// printSubcommandUsage prints the help message for a specific subcommand.
func printSubcommandUsage(command Command, desc string, fs *flag.FlagSet) {
	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(fs.Output(), "%s(%s) ", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(fs.Output(), "An incremental backup tool with version-controlled history.\n\n")
	fmt.Fprintf(fs.Output(), "Usage of the %s command: %s %s [flags]\n\n", command, execName, command)
	fmt.Fprintf(fs.Output(), "%s\n\n", desc)
	fmt.Fprintf(fs.Output(), "Flags:\n")
	fs.PrintDefaults()
}
