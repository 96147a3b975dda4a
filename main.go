package main

import (
	"context"
	"os"
	"syscall"

	"github.com/notescribe/notescribe/pkg/environment"
	"github.com/notescribe/notescribe/pkg/logging"
	"github.com/spf13/afero"
)

func main() {
	exitFn(run(afero.NewOsFs(), os.Args[1:]))
}

// run executes the CLI and returns the process exit code.
func run(fs afero.Fs, args []string) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel() // Ensure context is canceled when run exits

	logger := logging.GetLogger()

	env, err := setupEnvironment(fs)
	if err != nil {
		logger.Error("failed to set up environment", "error", err)
		return 1
	}

	stop := setupSignalHandler(cancel, logger)
	defer stop()

	rootCmd := NewRootCommandFn(ctx, fs, env, logger)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		logger.Debug("command failed", "error", err)
		return 1
	}
	return 0
}

// setupEnvironment initializes the environment using the filesystem.
func setupEnvironment(fs afero.Fs) (*environment.Environment, error) {
	environ, err := NewEnvironmentFn(fs, nil)
	if err != nil {
		return nil, err
	}
	return environ, nil
}

// setupSignalHandler cancels the run context on SIGINT/SIGTERM. A model that
// is already transcribing finishes its current file; only the stages before
// it observe the cancellation.
func setupSignalHandler(cancelFunc context.CancelFunc, logger *logging.Logger) func() {
	sigs := make(chan os.Signal, 1)
	SignalNotifyFn(sigs, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigs:
			logger.Warn("received signal, cancelling", "signal", sig)
			cancelFunc()
		case <-done:
		}
	}()

	return func() {
		SignalStopFn(sigs)
		close(done)
	}
}
