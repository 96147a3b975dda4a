package asr

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/notescribe/notescribe/pkg/download"
	"github.com/spf13/afero"
)

// DefaultModelBaseURL hosts the ggml conversions of the Whisper checkpoints.
const DefaultModelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// KnownModels are the ggml checkpoints offered by ModelBaseURL.
var KnownModels = []string{
	"tiny", "tiny.en", "base", "base.en", "small", "small.en",
	"medium", "medium.en", "large-v1", "large-v2", "large-v3", "large-v3-turbo",
}

// ModelFileName is the on-disk name of a ggml checkpoint.
func ModelFileName(name string) string {
	return "ggml-" + name + ".bin"
}

// ModelURL is where name can be downloaded from under baseURL.
func ModelURL(baseURL, name string) string {
	if baseURL == "" {
		baseURL = DefaultModelBaseURL
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + ModelFileName(name)
}

// isModelPath reports whether name already points at a file rather than
// naming a checkpoint.
func isModelPath(name string) bool {
	return strings.ContainsRune(name, filepath.Separator) || strings.HasSuffix(name, ".bin")
}

// ModelPath maps a checkpoint name (or explicit path) to a file path.
func ModelPath(modelDir, name string) string {
	if isModelPath(name) {
		return name
	}
	return filepath.Join(modelDir, ModelFileName(name))
}

// EnsureModel returns the path of name, downloading the checkpoint into
// modelDir when it is missing. Explicit paths are never downloaded.
func EnsureModel(ctx context.Context, fs afero.Fs, dl *download.Client, baseURL, modelDir, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("model name is empty")
	}
	path := ModelPath(modelDir, name)

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return "", fmt.Errorf("check model %s: %w", path, err)
	}
	if exists {
		return path, nil
	}
	if isModelPath(name) {
		return "", fmt.Errorf("model file %s does not exist", path)
	}

	if err := dl.DownloadFile(ctx, fs, ModelURL(baseURL, name), path); err != nil {
		return "", fmt.Errorf("download model %s: %w", name, err)
	}
	return path, nil
}
