//go:build whispercpp

package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/go-audio/wav"
	"github.com/notescribe/notescribe/pkg/audio"
)

func init() {
	Register(EngineWhisperBindings, func(c Config) (Backend, error) { return NewBindings(c), nil })
}

// Bindings runs whisper.cpp in-process through cgo.
type Bindings struct {
	cfg Config
}

// NewBindings returns the in-process backend.
func NewBindings(cfg Config) *Bindings {
	return &Bindings{cfg: cfg.withDefaults()}
}

func (b *Bindings) Name() string { return EngineWhisperBindings }

func (b *Bindings) Accepts(format audio.Format) bool { return format == audio.FormatWAV }

// Load reads the ggml checkpoint into memory, downloading it first if needed.
func (b *Bindings) Load(ctx context.Context, model string) (Model, error) {
	dctx, cancel := context.WithTimeout(ctx, b.cfg.DownloadTimeout)
	defer cancel()
	path, err := EnsureModel(dctx, b.cfg.Fs, b.cfg.Downloader, b.cfg.ModelBaseURL, b.cfg.ModelDir, model)
	if err != nil {
		return nil, err
	}

	m, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %q: %w", path, err)
	}
	return &bindingsModel{b: b, model: m}, nil
}

type bindingsModel struct {
	b     *Bindings
	model whisper.Model
}

func (m *bindingsModel) Infer(_ context.Context, wavPath, language string, opts DecodeOptions) (string, error) {
	samples, err := m.readSamples(wavPath)
	if err != nil {
		return "", err
	}

	wctx, err := m.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create context: %w", err)
	}
	if err := wctx.SetLanguage(language); err != nil {
		return "", fmt.Errorf("set language %q: %w", language, err)
	}
	wctx.SetTranslate(false)
	wctx.SetTemperature(opts.Temperature)
	// Negative increment disables the retry ladder above opts.Temperature.
	wctx.SetTemperatureFallback(-1)
	// The bindings expose beam size only; best-of follows the library default.
	wctx.SetBeamSize(opts.BeamSize)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("process: %w", err)
	}

	var segments []string
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("next segment: %w", err)
		}
		segments = append(segments, strings.TrimSpace(seg.Text))
	}
	return strings.Join(segments, " "), nil
}

func (m *bindingsModel) readSamples(path string) ([]float32, error) {
	f, err := m.b.cfg.Fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if int(dec.SampleRate) != audio.TargetSampleRate {
		return nil, fmt.Errorf("%s: unsupported sample rate %d", path, dec.SampleRate)
	}
	if dec.NumChans != 1 {
		return nil, fmt.Errorf("%s: expected mono audio, got %d channels", path, dec.NumChans)
	}
	return buf.AsFloat32Buffer().Data, nil
}

func (m *bindingsModel) Close() error {
	return m.model.Close()
}
