package asr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/notescribe/notescribe/pkg/audio"
	"github.com/spf13/afero"
)

// WhisperCPP drives the whisper.cpp command line binary.
type WhisperCPP struct {
	cfg Config
}

// NewWhisperCPP returns the whisper.cpp CLI backend.
func NewWhisperCPP(cfg Config) *WhisperCPP {
	return &WhisperCPP{cfg: cfg.withDefaults()}
}

func (w *WhisperCPP) Name() string { return EngineWhisperCPP }

// Accepts is true for wav only; other containers go through ffmpeg first.
func (w *WhisperCPP) Accepts(format audio.Format) bool {
	return format == audio.FormatWAV
}

// Load makes sure the ggml checkpoint is on disk and the binary is runnable.
func (w *WhisperCPP) Load(ctx context.Context, model string) (Model, error) {
	bin, err := w.cfg.LookPath(w.cfg.WhisperCPPBin)
	if err != nil {
		return nil, err
	}

	dctx, cancel := context.WithTimeout(ctx, w.cfg.DownloadTimeout)
	defer cancel()
	path, err := EnsureModel(dctx, w.cfg.Fs, w.cfg.Downloader, w.cfg.ModelBaseURL, w.cfg.ModelDir, model)
	if err != nil {
		return nil, err
	}

	w.cfg.Logger.Debug("whisper.cpp model ready", "bin", bin, "model", path)
	return &whisperCPPModel{cfg: w.cfg, bin: bin, modelPath: path}, nil
}

type whisperCPPModel struct {
	cfg       Config
	bin       string
	modelPath string
}

func whisperCPPArgs(modelPath, wavPath, language, outBase string, opts DecodeOptions) []string {
	return []string{
		"-m", modelPath,
		"-f", wavPath,
		"-l", language,
		"-tp", strconv.FormatFloat(float64(opts.Temperature), 'f', -1, 32),
		"-bo", strconv.Itoa(opts.BestOf),
		"-bs", strconv.Itoa(opts.BeamSize),
		"-nf",
		"-nt",
		"-np",
		"-otxt",
		"-of", outBase,
	}
}

func (m *whisperCPPModel) Infer(ctx context.Context, wavPath, language string, opts DecodeOptions) (string, error) {
	out, err := afero.TempFile(m.cfg.Fs, m.cfg.TmpDir, "notescribe-whispercpp-*.txt")
	if err != nil {
		return "", fmt.Errorf("whisper-cpp: create temp: %w", err)
	}
	txtPath := out.Name()
	_ = out.Close()
	defer func() { _ = m.cfg.Fs.Remove(txtPath) }()

	// whisper-cli appends ".txt" to the -of base.
	outBase := strings.TrimSuffix(txtPath, ".txt")
	args := whisperCPPArgs(m.modelPath, wavPath, language, outBase, opts)

	m.cfg.Logger.Info("running whisper.cpp", "model", m.modelPath, "language", language)
	if _, err := m.cfg.Runner.Run(ctx, m.bin, args...); err != nil {
		return "", err
	}

	return readTranscript(m.cfg.Fs, txtPath)
}

func (m *whisperCPPModel) Close() error { return nil }

// readTranscript reads a transcript text file. A file the engine never
// wrote means it heard nothing.
func readTranscript(fs afero.Fs, path string) (string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read transcript %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
