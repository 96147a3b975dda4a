package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/notescribe/notescribe/pkg/asr"
	"github.com/notescribe/notescribe/pkg/document"
	"github.com/notescribe/notescribe/pkg/environment"
	perrors "github.com/notescribe/notescribe/pkg/errors"
	"github.com/notescribe/notescribe/pkg/logging"
	"github.com/notescribe/notescribe/pkg/pipeline"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewTranscribeCommand creates the 'transcribe' command.
func NewTranscribeCommand(ctx context.Context, fs afero.Fs, env *environment.Environment, logger *logging.Logger) *cobra.Command {
	opts := transcribeOptions{}

	cmd := &cobra.Command{
		Use:     "transcribe [audio] [output]",
		Aliases: []string{"t"},
		Example: "$ notescribe transcribe memo.wma memo.docx --language fr",
		Short:   "Transcribe a voice note into a .docx document",
		Args:    cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			audioPath, outputPath := argAt(args, 0), argAt(args, 1)

			if env.IsNonInteractive() {
				if outputPath == "" {
					outputPath = defaultOutputPath(audioPath)
				}
			} else if audioPath == "" || outputPath == "" {
				var err error
				audioPath, outputPath, err = PromptForPathsFn(fs, audioPath, outputPath)
				if err != nil {
					return err
				}
			}
			audioPath, outputPath = strings.TrimSpace(audioPath), strings.TrimSpace(outputPath)
			if outputPath != "" {
				outputPath = document.EnsureExtension(outputPath)
			}

			h, err := BuildPipelineFn(ctx, fs, env, opts, logger)
			if err != nil {
				fmt.Fprintln(out, errorLine(pipeline.StateFailed.Status()+": "+err.Error()))
				return err
			}
			defer func() {
				if cerr := h.Close(); cerr != nil {
					logger.Warn("failed to release resources", "error", cerr)
				}
			}()

			req := pipeline.Request{AudioPath: audioPath, OutputPath: outputPath, Language: opts.Language}
			runErr := runTranscription(ctx, h.Orchestrator, req, env.IsNonInteractive(), out)

			if merr := writeMetrics(h, opts.MetricsTextfile); merr != nil {
				logger.Warn("failed to write metrics", "path", opts.MetricsTextfile, "error", merr)
			}

			if runErr != nil {
				fmt.Fprintln(out, errorLine(pipeline.StateFailed.Status()+": "+failureMessage(runErr)))
				return runErr
			}
			fmt.Fprintln(out, successLine(pipeline.StateDone.Status()+": "+outputPath))
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Language, "language", "L", env.Language, "Language spoken in the recording (BCP 47 code)")
	cmd.Flags().StringVarP(&opts.Engine, "engine", "e", env.Engine, fmt.Sprintf("Speech engine, one of %v", asr.Backends()))
	cmd.Flags().StringVarP(&opts.Model, "model", "m", env.Model, "Model name or path to a model file")
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file after the run")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "Do not record the run in the history database")

	return cmd
}

// runTranscription runs req, behind a spinner when a terminal is attached.
// Without one, every state change is printed instead.
func runTranscription(ctx context.Context, orch *pipeline.Orchestrator, req pipeline.Request, nonInteractive bool, out io.Writer) error {
	if nonInteractive {
		last := ""
		orch.Observer = func(s pipeline.State) {
			if status := s.Status(); status != last && !s.Terminal() {
				fmt.Fprintln(out, statusStyle.Render(status))
				last = status
			}
		}
		return orch.Transcribe(ctx, req)
	}

	var runErr error
	if err := RunSpinnerFn(pipeline.StateTranscribing.Status(), func() {
		runErr = orch.Transcribe(ctx, req)
	}); err != nil {
		return err
	}
	return runErr
}

// failureMessage shows the cause behind a pipeline error.
func failureMessage(err error) string {
	pe, ok := perrors.AsPipelineError(err)
	if !ok {
		return err.Error()
	}
	if pe.Cause != nil {
		return pe.Message + ": " + pe.Cause.Error()
	}
	return pe.Message
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return strings.TrimSpace(args[i])
	}
	return ""
}
