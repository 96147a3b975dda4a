package asr

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/notescribe/notescribe/pkg/audio"
	"github.com/spf13/afero"
)

// WhisperCLI drives the openai-whisper Python command line tool.
type WhisperCLI struct {
	cfg Config
}

// NewWhisperCLI returns the openai-whisper backend.
func NewWhisperCLI(cfg Config) *WhisperCLI {
	return &WhisperCLI{cfg: cfg.withDefaults()}
}

func (w *WhisperCLI) Name() string { return EngineWhisper }

// Accepts anything ffmpeg demuxes by probing. ASF needs an explicit
// demuxer, so Windows Media files are converted first.
func (w *WhisperCLI) Accepts(format audio.Format) bool {
	return format != audio.FormatWMA && format != audio.FormatASF
}

// Load checks the binary. The tool loads (and downloads) checkpoints itself
// on every run.
func (w *WhisperCLI) Load(_ context.Context, model string) (Model, error) {
	bin, err := w.cfg.LookPath(w.cfg.WhisperBin)
	if err != nil {
		return nil, err
	}
	args := []string{}
	if w.cfg.ModelDir != "" {
		args = append(args, "--model_dir", w.cfg.ModelDir)
	}
	return &whisperCLIModel{cfg: w.cfg, bin: bin, model: model, extra: args}, nil
}

type whisperCLIModel struct {
	cfg   Config
	bin   string
	model string
	extra []string
}

func whisperCLIArgs(wavPath, model, language, outDir string, opts DecodeOptions, extra []string) []string {
	args := []string{
		wavPath,
		"--model", model,
		"--language", language,
		"--task", "transcribe",
		"--temperature", strconv.FormatFloat(float64(opts.Temperature), 'f', -1, 32),
		"--temperature_increment_on_fallback", "None",
		"--beam_size", strconv.Itoa(opts.BeamSize),
		"--best_of", strconv.Itoa(opts.BestOf),
		"--output_format", "txt",
		"--output_dir", outDir,
		"--verbose", "False",
	}
	return append(args, extra...)
}

func (m *whisperCLIModel) Infer(ctx context.Context, wavPath, language string, opts DecodeOptions) (string, error) {
	outDir, err := afero.TempDir(m.cfg.Fs, m.cfg.TmpDir, "notescribe-whisper-")
	if err != nil {
		return "", fmt.Errorf("whisper: create output dir: %w", err)
	}
	defer func() { _ = m.cfg.Fs.RemoveAll(outDir) }()

	args := whisperCLIArgs(wavPath, m.model, language, outDir, opts, m.extra)
	m.cfg.Logger.Info("running whisper", "model", m.model, "language", language)
	if _, err := m.cfg.Runner.Run(ctx, m.bin, args...); err != nil {
		return "", err
	}

	// whisper writes <basename>.txt in the output dir.
	base := strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath))
	return readTranscript(m.cfg.Fs, filepath.Join(outDir, base+".txt"))
}

func (m *whisperCLIModel) Close() error { return nil }
