package main

import (
	"os"
	"os/signal"

	"github.com/notescribe/notescribe/cmd"
	"github.com/notescribe/notescribe/pkg/environment"
)

// Injectable functions for testability
var (
	// OS operations
	exitFn         = os.Exit
	SignalNotifyFn = signal.Notify
	SignalStopFn   = signal.Stop

	// Environment functions
	NewEnvironmentFn = environment.NewEnvironment

	// Command functions
	NewRootCommandFn = cmd.NewRootCommand
)
