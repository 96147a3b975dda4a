package cmd

import (
	"github.com/charmbracelet/huh/spinner"
	"github.com/notescribe/notescribe/pkg/download"
	"github.com/notescribe/notescribe/pkg/history"
)

// Injectable functions for testability (shared across cmd package)
var (
	// Pipeline construction
	BuildPipelineFn = buildPipeline

	// Model downloads
	NewDownloadClientFn = download.NewClient

	// Run history
	OpenHistoryFn = history.Open

	// Prompts
	PromptForPathsFn = promptForPaths

	// Spinner wraps long runs in interactive mode
	RunSpinnerFn = func(title string, action func()) error {
		return spinner.New().Title(title).Action(action).Run()
	}
)
