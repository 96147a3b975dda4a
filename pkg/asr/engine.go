// Package asr wraps the speech recognition backends behind a load-once
// engine with fixed, deterministic decoding settings.
package asr

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/notescribe/notescribe/pkg/audio"
	perrors "github.com/notescribe/notescribe/pkg/errors"
	"github.com/notescribe/notescribe/pkg/logging"
)

// TranscriptionResult is the raw transcript of one recording.
type TranscriptionResult struct {
	Text string
}

// DecodeOptions are the decoding knobs handed to every backend.
type DecodeOptions struct {
	Temperature float32
	BeamSize    int
	BestOf      int
}

// DefaultDecodeOptions keeps decoding greedy-deterministic with three
// candidates per segment.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{Temperature: 0, BeamSize: 3, BestOf: 3}
}

// Model is a loaded speech model.
type Model interface {
	// Infer transcribes the waveform at wavPath. language is never empty;
	// backends must not fall back to language detection.
	Infer(ctx context.Context, wavPath, language string, opts DecodeOptions) (string, error)
	Close() error
}

// Backend loads models of one engine family.
type Backend interface {
	Name() string
	Load(ctx context.Context, model string) (Model, error)
	// Accepts reports whether the engine can read format without conversion.
	Accepts(format audio.Format) bool
}

// ErrNilResult is returned when a backend yields neither text nor error.
var ErrNilResult = errors.New("backend returned no result")

// Engine owns the single model instance of a process.
type Engine struct {
	Backend   Backend
	ModelName string
	Options   DecodeOptions
	Logger    *logging.Logger
	// OnLoad is called after every successful model load. Optional.
	OnLoad    func()

	mu    sync.Mutex
	model Model
	loads int
}

// NewEngine returns an engine that loads modelName from backend on first use.
func NewEngine(backend Backend, modelName string, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Engine{
		Backend:   backend,
		ModelName: modelName,
		Options:   DefaultDecodeOptions(),
		Logger:    logger,
	}
}

// Accepts delegates to the backend.
func (e *Engine) Accepts(format audio.Format) bool {
	return e.Backend.Accepts(format)
}

// Load returns the cached model, loading it on the first call.
func (e *Engine) Load(ctx context.Context) (Model, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model != nil {
		return e.model, nil
	}

	e.Logger.Info("loading speech model", "backend", e.Backend.Name(), "model", e.ModelName)
	m, err := e.Backend.Load(ctx, e.ModelName)
	if err != nil {
		return nil, perrors.NewModelLoadError(e.ModelName, err).
			WithContext("backend", e.Backend.Name())
	}
	if m == nil {
		return nil, perrors.NewModelLoadError(e.ModelName, ErrNilResult)
	}

	e.model = m
	e.loads++
	if e.OnLoad != nil {
		e.OnLoad()
	}
	return m, nil
}

// Transcribe runs inference on wavPath with the fixed decode options.
// An empty transcript is a valid result.
func (e *Engine) Transcribe(ctx context.Context, wavPath, language string) (*TranscriptionResult, error) {
	m, err := e.Load(ctx)
	if err != nil {
		return nil, err
	}

	text, err := m.Infer(ctx, wavPath, language, e.Options)
	if err != nil {
		return nil, perrors.NewTranscriptionError(wavPath, err).
			WithContext("backend", e.Backend.Name())
	}

	return &TranscriptionResult{Text: strings.TrimSpace(text)}, nil
}

// LoadCount reports how many times a model was loaded.
func (e *Engine) LoadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads
}

// Close releases the model. A later call to Transcribe loads it again.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	return err
}
