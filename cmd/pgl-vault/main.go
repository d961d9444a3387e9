package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/paulschiretz/pgl-vault/cmd"
	"github.com/paulschiretz/pgl-vault/pkg/buildinfo"
	"github.com/paulschiretz/pgl-vault/pkg/flagparse"
	"github.com/paulschiretz/pgl-vault/pkg/plog"
)

// run encapsulates the main application logic and returns an error if
// something goes wrong, allowing the main function to handle exit codes.
func run(ctx context.Context) error {
	command, flagMap, err := flagparse.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	switch command {
	case flagparse.Backup:
		plog.Info("Starting "+buildinfo.Name, "version", buildinfo.Version, "pid", os.Getpid())
		return cmd.RunBackup(ctx, flagMap)
	case flagparse.Init:
		return cmd.RunInit(ctx, flagMap)
	case flagparse.Log:
		return cmd.RunLog(ctx, flagMap)
	case flagparse.Version:
		return cmd.RunVersion(buildinfo.Name, buildinfo.Version)
	case flagparse.None:
		// Help was printed.
		return nil
	default:
		return nil
	}
}

func main() {
	// Cancel the run context on interrupt so subprocesses are terminated
	// and the checkout teardown still runs.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx); err != nil {
		plog.Error(buildinfo.Name+" exited with error", "error", err)
		os.Exit(1)
	}
}
