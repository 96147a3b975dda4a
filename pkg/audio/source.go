package audio

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// Format is a container format named by its lower-case file extension,
// without the dot.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatWMA  Format = "wma"
	FormatASF  Format = "asf"
	FormatMP3  Format = "mp3"
	FormatM4A  Format = "m4a"
	FormatMP4  Format = "mp4"
	FormatOGG  Format = "ogg"
	FormatOGA  Format = "oga"
	FormatFLAC Format = "flac"
	FormatWEBM Format = "webm"
	FormatMPEG Format = "mpeg"
	FormatMPGA Format = "mpga"
)

// PromptFormats are the formats a file picker offers first.
var PromptFormats = []Format{FormatWMA, FormatMP3, FormatWAV, FormatM4A}

// FormatOf returns the format implied by path's extension.
func FormatOf(path string) Format {
	return Format(strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")))
}

// Source is an input audio file as handed in by the caller.
type Source struct {
	Path   string
	Format Format
	// MIME is the sniffed content type; informational only, the extension decides.
	MIME string
}

// DetectSource opens path, sniffs its content type and derives its format
// from the extension. It fails when the file cannot be read.
func DetectSource(fs afero.Fs, path string) (Source, error) {
	f, err := fs.Open(path)
	if err != nil {
		return Source{}, fmt.Errorf("open audio source: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Source{}, fmt.Errorf("stat audio source: %w", err)
	}
	if info.IsDir() {
		return Source{}, fmt.Errorf("audio source %s is a directory", path)
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return Source{}, fmt.Errorf("read audio source: %w", err)
	}

	return Source{Path: path, Format: FormatOf(path), MIME: mtype.String()}, nil
}

// LooksLikeMedia reports whether the sniffed type is audio or video.
func (s Source) LooksLikeMedia() bool {
	return strings.HasPrefix(s.MIME, "audio/") || strings.HasPrefix(s.MIME, "video/")
}
