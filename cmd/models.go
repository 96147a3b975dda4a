package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/notescribe/notescribe/pkg/asr"
	"github.com/notescribe/notescribe/pkg/environment"
	"github.com/notescribe/notescribe/pkg/logging"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewModelsCommand creates the 'models' command group.
func NewModelsCommand(ctx context.Context, fs afero.Fs, env *environment.Environment, logger *logging.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage local whisper.cpp models",
	}
	cmd.AddCommand(newModelsPullCommand(ctx, fs, env, logger))
	cmd.AddCommand(newModelsListCommand(fs, env))
	return cmd
}

func newModelsPullCommand(ctx context.Context, fs afero.Fs, env *environment.Environment, logger *logging.Logger) *cobra.Command {
	return &cobra.Command{
		Use:     "pull [name]",
		Example: "$ notescribe models pull medium",
		Short:   "Download a ggml model into the model directory",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := argAt(args, 0)
			if name == "" {
				name = env.Model
			}

			client := NewDownloadClientFn(logger)
			client.Progress = cmd.ErrOrStderr()

			dctx, cancel := context.WithTimeout(ctx, time.Duration(env.TimeoutSec)*time.Second)
			defer cancel()

			path, err := asr.EnsureModel(dctx, fs, client, env.ModelBaseURL, env.ModelDir, name)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), errorLine(err.Error()))
				return err
			}

			size := ""
			if info, err := fs.Stat(path); err == nil {
				size = " (" + humanize.Bytes(uint64(info.Size())) + ")"
			}
			fmt.Fprintln(cmd.OutOrStdout(), successLine("model ready: "+path+size))
			return nil
		},
	}
}

func newModelsListCommand(fs afero.Fs, env *environment.Environment) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known models and which ones are downloaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, name := range asr.KnownModels {
				info, err := fs.Stat(asr.ModelPath(env.ModelDir, name))
				if err != nil {
					fmt.Fprintln(out, dimStyle.Render("  "+name))
					continue
				}
				fmt.Fprintln(out, successLine(fmt.Sprintf("%s (%s)", name, humanize.Bytes(uint64(info.Size())))))
			}
			return nil
		},
	}
}
