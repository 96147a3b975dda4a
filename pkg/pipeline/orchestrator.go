// Package pipeline runs a recording through normalization, transcription,
// duplicate filtering and document assembly.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/notescribe/notescribe/pkg/asr"
	"github.com/notescribe/notescribe/pkg/audio"
	"github.com/notescribe/notescribe/pkg/dedup"
	perrors "github.com/notescribe/notescribe/pkg/errors"
	"github.com/notescribe/notescribe/pkg/history"
	"github.com/notescribe/notescribe/pkg/logging"
	"github.com/notescribe/notescribe/pkg/metrics"
)

// ErrBusy is returned when Transcribe is called while a run is in progress.
var ErrBusy = errors.New("pipeline: a run is already in progress")

// Normalizer turns a source path into decodable audio.
type Normalizer interface {
	Normalize(ctx context.Context, path string) (*audio.Normalized, error)
}

// Transcriber runs speech recognition on a normalized file.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath, language string) (*asr.TranscriptionResult, error)
}

// DocumentWriter persists the final text.
type DocumentWriter interface {
	Write(text, path string) error
}

// Recorder stores a summary of every finished run.
type Recorder interface {
	Record(ctx context.Context, run history.Run) error
}

// Orchestrator owns the run state machine. It runs one request at a time.
type Orchestrator struct {
	Normalizer Normalizer
	Engine     Transcriber
	Filter     func(string) string
	Assembler  DocumentWriter
	Logger     *logging.Logger

	// Optional collaborators.
	Metrics  *metrics.PipelineMetrics
	History  Recorder
	Observer func(State)

	// EngineName and ModelName are copied into history rows.
	EngineName string
	ModelName  string

	mu      sync.Mutex
	state   State
	running bool
	lastRun history.Run
}

// New builds an orchestrator with the duplicate sentence filter.
func New(n Normalizer, e Transcriber, a DocumentWriter, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Orchestrator{
		Normalizer: n,
		Engine:     e,
		Filter:     dedup.Filter,
		Assembler:  a,
		Logger:     logger,
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastRun returns the summary of the most recently finished run.
func (o *Orchestrator) LastRun() history.Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastRun
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	if o.Observer != nil {
		o.Observer(s)
	}
}

// run is the bookkeeping of one Transcribe call.
type run struct {
	id      string
	req     Request
	started time.Time
	log     *logging.RunLogger
	chars   int
}

// Transcribe runs req to completion. It blocks until the document is written
// or a stage fails; the returned error is then a *errors.PipelineError.
// Once transcription has started, cancelling ctx no longer aborts the run.
func (o *Orchestrator) Transcribe(ctx context.Context, req Request) (err error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrBusy
	}
	o.running = true
	o.state = StateIdle
	o.mu.Unlock()

	r := &run{id: uuid.NewString(), req: req, started: time.Now()}
	r.log = logging.NewRunLogger(o.Logger).WithRunID(r.id)
	r.log.Info("run started", "audio", req.AudioPath, "output", req.OutputPath, "language", req.Language)

	defer func() {
		o.finish(ctx, r, err)
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	if verr := ValidateRequest(req); verr != nil {
		return o.fail(r, "validate", verr, perrors.ErrInputValidation)
	}

	// Normalizing
	o.setState(StateNormalizing)
	var norm *audio.Normalized
	if serr := o.stage(r, "normalize", func() error {
		var nerr error
		norm, nerr = o.Normalizer.Normalize(ctx, req.AudioPath)
		return nerr
	}); serr != nil {
		return o.fail(r, "normalize", serr, perrors.ErrAudioDecode)
	}
	defer o.release(r, norm)

	// Transcribing: inference is not interruptible.
	o.setState(StateTranscribing)
	var result *asr.TranscriptionResult
	if serr := o.stage(r, "transcribe", func() error {
		var terr error
		result, terr = o.Engine.Transcribe(context.WithoutCancel(ctx), norm.Path, req.Language)
		if terr == nil && result == nil {
			terr = perrors.NewTranscriptionError(norm.Path, asr.ErrNilResult)
		}
		return terr
	}); serr != nil {
		return o.fail(r, "transcribe", serr, perrors.ErrTranscription)
	}

	// Filtering
	o.setState(StateFiltering)
	var text string
	_ = o.stage(r, "filter", func() error {
		text = o.Filter(result.Text)
		return nil
	})
	r.chars = len([]rune(text))
	r.log.Debug("transcript filtered", "raw_chars", len([]rune(result.Text)), "chars", r.chars)

	// Assembling
	o.setState(StateAssembling)
	if serr := o.stage(r, "assemble", func() error {
		return o.Assembler.Write(text, req.OutputPath)
	}); serr != nil {
		return o.fail(r, "assemble", serr, perrors.ErrDocumentWrite)
	}

	o.setState(StateDone)
	if o.Metrics != nil {
		o.Metrics.TranscriptChars.Observe(float64(r.chars))
	}
	return nil
}

// stage times fn under name.
func (o *Orchestrator) stage(r *run, name string, fn func() error) error {
	d, err := r.log.WithStage(name).TimeOperation(name, fn)
	if o.Metrics != nil {
		o.Metrics.ObserveStage(name, d, err)
	}
	return err
}

// fail wraps err once into a pipeline error tagged with the stage and run,
// and moves to Failed.
func (o *Orchestrator) fail(r *run, stage string, err error, fallback perrors.ErrorCode) error {
	pe, ok := perrors.AsPipelineError(err)
	if !ok {
		pe = perrors.WrapError(err, fallback, stage+" failed")
	}
	pe = pe.WithStage(stage).WithRunID(r.id)
	o.setState(StateFailed)
	return pe
}

// release deletes the temporary waveform. A failure here is logged and never
// replaces the run's own error.
func (o *Orchestrator) release(r *run, norm *audio.Normalized) {
	if norm == nil || !norm.OwnedTemp {
		return
	}
	if err := norm.Release(); err != nil {
		r.log.Warn("failed to remove temporary audio", "path", norm.Path, "error", err)
		return
	}
	if o.Metrics != nil {
		o.Metrics.TempFilesRemoved.Inc()
	}
	r.log.Debug("temporary audio removed", "path", norm.Path)
}

// finish records the outcome of a run in metrics and history.
func (o *Orchestrator) finish(ctx context.Context, r *run, err error) {
	summary := history.Run{
		ID:         r.id,
		StartedAt:  r.started,
		Duration:   time.Since(r.started),
		AudioPath:  r.req.AudioPath,
		OutputPath: r.req.OutputPath,
		Language:   r.req.Language,
		Engine:     o.EngineName,
		Model:      o.ModelName,
		Outcome:    history.OutcomeSuccess,
		Chars:      r.chars,
	}
	if err != nil {
		summary.Outcome = history.OutcomeFailed
		summary.Message = err.Error()
		if pe, ok := perrors.AsPipelineError(err); ok {
			summary.ErrorCode = pe.Code.Error()
		}
		r.log.Error("run failed", "error", err, "duration", summary.Duration)
	} else {
		r.log.Info("run completed", "output", r.req.OutputPath, "chars", r.chars, "duration", summary.Duration)
	}

	if o.Metrics != nil {
		o.Metrics.RecordRun(summary.Outcome, summary.ErrorCode)
	}
	if o.History != nil {
		if herr := o.History.Record(context.WithoutCancel(ctx), summary); herr != nil {
			r.log.Warn("failed to record run history", "error", herr)
		}
	}

	o.mu.Lock()
	o.lastRun = summary
	o.mu.Unlock()
}
