package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode identifies which kind of failure ended a transcription run.
// It implements error so callers can match codes with errors.Is.
type ErrorCode string

const (
	// ErrInputValidation means the caller supplied an empty path or a bad language hint.
	ErrInputValidation ErrorCode = "INPUT_VALIDATION"
	// ErrAudioDecode means the source audio could not be turned into a waveform.
	ErrAudioDecode ErrorCode = "AUDIO_DECODE"
	// ErrModelLoad means the speech model could not be initialized.
	ErrModelLoad ErrorCode = "MODEL_LOAD"
	// ErrTranscription means inference failed on a normalized waveform.
	ErrTranscription ErrorCode = "TRANSCRIPTION"
	// ErrDocumentWrite means the output document could not be persisted.
	ErrDocumentWrite ErrorCode = "DOCUMENT_WRITE"
)

func (c ErrorCode) Error() string {
	return string(c)
}

// PipelineError is the single error type returned by a failed run.
type PipelineError struct {
	Code      ErrorCode              `json:"code"`
	Stage     string                 `json:"stage,omitempty"`
	Message   string                 `json:"message"`
	RunID     string                 `json:"run_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface.
func (pe *PipelineError) Error() string {
	msg := fmt.Sprintf("[%s]", pe.Code)
	if pe.Stage != "" {
		msg += " " + pe.Stage
	}
	msg += ": " + pe.Message
	if pe.Cause != nil {
		msg += ": " + pe.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause error.
func (pe *PipelineError) Unwrap() error {
	return pe.Cause
}

// Is reports whether target is this error's code or another PipelineError
// with the same code.
func (pe *PipelineError) Is(target error) bool {
	switch t := target.(type) {
	case ErrorCode:
		return pe.Code == t
	case *PipelineError:
		return t != nil && pe.Code == t.Code
	}
	return false
}

// NewPipelineError creates a new structured pipeline error.
func NewPipelineError(code ErrorCode, message string) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Context:   make(map[string]interface{}),
	}
}

// WithStage records the pipeline stage the error came from.
func (pe *PipelineError) WithStage(stage string) *PipelineError {
	pe.Stage = stage
	return pe
}

// WithRunID records the run the error belongs to.
func (pe *PipelineError) WithRunID(runID string) *PipelineError {
	pe.RunID = runID
	return pe
}

// WithCause adds the underlying cause error.
func (pe *PipelineError) WithCause(err error) *PipelineError {
	pe.Cause = err
	return pe
}

// WithContext adds arbitrary context to the error.
func (pe *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	pe.Context[key] = value
	return pe
}

// AsPipelineError finds the first PipelineError in err's chain.
func AsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// HasErrorCode checks if an error carries a specific error code.
func HasErrorCode(err error, code ErrorCode) bool {
	if pe, ok := AsPipelineError(err); ok {
		return pe.Code == code
	}
	return false
}

// WrapError wraps a regular error as a PipelineError.
func WrapError(err error, code ErrorCode, message string) *PipelineError {
	return NewPipelineError(code, message).WithCause(err)
}

func NewInputValidationError(message string) *PipelineError {
	return NewPipelineError(ErrInputValidation, message)
}

func NewAudioDecodeError(path string, cause error) *PipelineError {
	return NewPipelineError(ErrAudioDecode, "failed to decode audio").
		WithContext("path", path).
		WithCause(cause)
}

func NewModelLoadError(model string, cause error) *PipelineError {
	return NewPipelineError(ErrModelLoad, "failed to load speech model").
		WithContext("model", model).
		WithCause(cause)
}

func NewTranscriptionError(path string, cause error) *PipelineError {
	return NewPipelineError(ErrTranscription, "transcription failed").
		WithContext("path", path).
		WithCause(cause)
}

func NewDocumentWriteError(path string, cause error) *PipelineError {
	return NewPipelineError(ErrDocumentWrite, "failed to write document").
		WithContext("path", path).
		WithCause(cause)
}
