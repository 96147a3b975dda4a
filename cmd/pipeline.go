package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/notescribe/notescribe/pkg/asr"
	"github.com/notescribe/notescribe/pkg/audio"
	"github.com/notescribe/notescribe/pkg/document"
	"github.com/notescribe/notescribe/pkg/environment"
	"github.com/notescribe/notescribe/pkg/logging"
	"github.com/notescribe/notescribe/pkg/metrics"
	"github.com/notescribe/notescribe/pkg/pipeline"
	"github.com/notescribe/notescribe/pkg/scribeexec"
	"github.com/spf13/afero"
)

// transcribeOptions are the transcribe command flags.
type transcribeOptions struct {
	Language        string
	Engine          string
	Model           string
	MetricsTextfile string
	NoHistory       bool
}

// PipelineHandle is a ready orchestrator plus the resources it holds.
type PipelineHandle struct {
	Orchestrator *pipeline.Orchestrator
	Metrics      *metrics.PipelineMetrics
	closers      []func() error
}

// AddCloser registers fn to run on Close, last added first.
func (h *PipelineHandle) AddCloser(fn func() error) {
	h.closers = append(h.closers, fn)
}

// Close releases the model and the history database.
func (h *PipelineHandle) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildPipeline wires the production components for one process.
func buildPipeline(_ context.Context, fs afero.Fs, env *environment.Environment, opts transcribeOptions, logger *logging.Logger) (*PipelineHandle, error) {
	runner := scribeexec.NewTaskRunner(logger)

	backend, err := asr.New(opts.Engine, asr.Config{
		Fs:              fs,
		Runner:          runner,
		Downloader:      NewDownloadClientFn(logger),
		Logger:          logger,
		ModelDir:        env.ModelDir,
		TmpDir:          env.TmpDir,
		ModelBaseURL:    env.ModelBaseURL,
		WhisperCPPBin:   env.WhisperCPPBin,
		WhisperBin:      env.WhisperBin,
		OpenAIKey:       env.OpenAIAPIKey,
		OpenAIBaseURL:   env.OpenAIBaseURL,
		DownloadTimeout: time.Duration(env.TimeoutSec) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	engine := asr.NewEngine(backend, opts.Model, logger)
	engine.OnLoad = m.ModelLoads.Inc

	norm := audio.NewNormalizer(fs, audio.NewFFmpegDecoder(env.FFmpegBin, runner), engine.Accepts, logger)
	norm.TmpDir = env.TmpDir
	norm.OnTemp = func(string) { m.TempFilesCreated.Inc() }

	orch := pipeline.New(norm, engine, document.NewAssembler(fs, logger), logger)
	orch.Metrics = m
	orch.EngineName = backend.Name()
	orch.ModelName = opts.Model

	h := &PipelineHandle{Orchestrator: orch, Metrics: m}
	h.AddCloser(engine.Close)

	if !opts.NoHistory {
		store, err := OpenHistoryFn(fs, env.HistoryDB, logger)
		if err != nil {
			// History is a convenience; a locked or unwritable database must
			// not stop a transcription.
			logger.Warn("run history disabled", "path", env.HistoryDB, "error", err)
		} else {
			orch.History = store
			h.AddCloser(store.Close)
		}
	}

	return h, nil
}

// writeMetrics dumps the registry when a textfile path was given.
func writeMetrics(h *PipelineHandle, path string) error {
	if path == "" || h.Metrics == nil {
		return nil
	}
	if err := h.Metrics.WriteTextfile(path); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}
