package pipeline

import (
	"path/filepath"
	"strings"

	perrors "github.com/notescribe/notescribe/pkg/errors"
	"golang.org/x/text/language"
)

// Request is the input of one run.
type Request struct {
	AudioPath  string
	OutputPath string
	// Language is handed to the engine verbatim.
	Language string
}

// ValidateRequest rejects requests the pipeline cannot start on.
func ValidateRequest(req Request) error {
	if strings.TrimSpace(req.AudioPath) == "" {
		return perrors.NewInputValidationError("audio path is required")
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return perrors.NewInputValidationError("output path is required")
	}
	if filepath.Clean(req.AudioPath) == filepath.Clean(req.OutputPath) {
		return perrors.NewInputValidationError("output path must differ from the audio path").
			WithContext("path", req.OutputPath)
	}
	if req.Language == "" {
		return perrors.NewInputValidationError("language is required")
	}
	if _, err := language.Parse(req.Language); err != nil {
		return perrors.NewInputValidationError("invalid language code").
			WithContext("language", req.Language).
			WithCause(err)
	}
	return nil
}
