package cmd

import (
	"context"

	"github.com/notescribe/notescribe/pkg/environment"
	"github.com/notescribe/notescribe/pkg/logging"
	"github.com/notescribe/notescribe/pkg/version"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewRootCommand returns the root command with all subcommands attached
func NewRootCommand(ctx context.Context, fs afero.Fs, env *environment.Environment, logger *logging.Logger) *cobra.Command {
	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:   "notescribe",
		Short: "Turn voice notes into Word documents.",
		Long: `Notescribe transcribes a recorded voice note with a Whisper speech model, drops
sentences the model repeated back to back, and saves the text as a .docx document.
Windows Media, MP3, M4A and WAV recordings are supported; anything ffmpeg can
decode works.`,
		Version:      version.String(),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(NewTranscribeCommand(ctx, fs, env, logger))
	rootCmd.AddCommand(NewModelsCommand(ctx, fs, env, logger))
	rootCmd.AddCommand(NewHistoryCommand(ctx, fs, env, logger))

	return rootCmd
}
