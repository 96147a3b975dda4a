// Package audio turns caller-supplied recordings into waveform files a
// speech backend can decode directly.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	perrors "github.com/notescribe/notescribe/pkg/errors"
	"github.com/notescribe/notescribe/pkg/logging"
	"github.com/spf13/afero"
)

// TempPattern names the converted waveform files.
const TempPattern = "notescribe-*.wav"

// Normalized is the audio handed to the speech backend.
type Normalized struct {
	Path string
	// OwnedTemp is set when Path was allocated by the normalizer and must be
	// deleted once the run ends.
	OwnedTemp bool

	fs       afero.Fs
	once     sync.Once
	released error
}

// Release deletes an owned temporary file. It only acts on the first call;
// later calls return the first result.
func (n *Normalized) Release() error {
	if n == nil || !n.OwnedTemp {
		return nil
	}
	n.once.Do(func() {
		if err := n.fs.Remove(n.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			n.released = err
		}
	})
	return n.released
}

// Normalizer decides whether a source needs conversion and performs it.
type Normalizer struct {
	Fs      afero.Fs
	Decoder Decoder
	// Accepts reports the formats the active backend reads natively.
	Accepts func(Format) bool
	// TmpDir is where converted files go; "" means the system temp dir.
	TmpDir  string
	Logger  *logging.Logger
	// OnTemp is called with every temp path allocated. Optional.
	OnTemp  func(path string)
}

// NewNormalizer builds a normalizer over fs.
func NewNormalizer(fs afero.Fs, decoder Decoder, accepts func(Format) bool, logger *logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Normalizer{Fs: fs, Decoder: decoder, Accepts: accepts, Logger: logger}
}

// Normalize returns a path the backend can decode. Sources in a format the
// backend accepts are returned as is, except wav files that are not already
// 16 kHz mono 16-bit; anything else is decoded to a fresh temporary wav file. Every failure is an AudioDecode pipeline error and
// leaves no temporary file behind.
func (n *Normalizer) Normalize(ctx context.Context, path string) (*Normalized, error) {
	src, err := DetectSource(n.Fs, path)
	if err != nil {
		return nil, perrors.NewAudioDecodeError(path, err)
	}
	n.Logger.Debug("audio source detected", "path", src.Path, "format", src.Format, "mime", src.MIME)

	if n.Accepts != nil && n.Accepts(src.Format) {
		if src.Format == FormatWAV {
			info, err := InspectWAV(n.Fs, src.Path)
			if err != nil {
				return nil, perrors.NewAudioDecodeError(path, err)
			}
			if !info.Canonical() {
				n.Logger.Info("wav needs resampling",
					"path", src.Path,
					"sample_rate", info.SampleRate,
					"channels", info.Channels,
					"bit_depth", info.BitDepth,
				)
				return n.convert(ctx, src)
			}
		} else if !src.LooksLikeMedia() {
			n.Logger.Warn("passing through file that does not sniff as media", "path", src.Path, "mime", src.MIME)
		}
		n.Logger.Info("audio passthrough", "path", src.Path, "format", src.Format)
		return &Normalized{Path: src.Path, fs: n.Fs}, nil
	}

	return n.convert(ctx, src)
}

func (n *Normalizer) convert(ctx context.Context, src Source) (*Normalized, error) {
	tmp, err := afero.TempFile(n.Fs, n.TmpDir, TempPattern)
	if err != nil {
		return nil, perrors.NewAudioDecodeError(src.Path, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	if n.OnTemp != nil {
		n.OnTemp(tmpPath)
	}

	out := &Normalized{Path: tmpPath, OwnedTemp: true, fs: n.Fs}
	fail := func(cause error) (*Normalized, error) {
		if rerr := out.Release(); rerr != nil {
			n.Logger.Warn("failed to remove temporary audio", "path", tmpPath, "error", rerr)
		}
		return nil, perrors.NewAudioDecodeError(src.Path, cause)
	}

	n.Logger.Info("converting audio", "source", src.Path, "format", src.Format, "target", tmpPath)
	if err := n.Decoder.Decode(ctx, src, tmpPath); err != nil {
		return fail(err)
	}

	info, err := InspectWAV(n.Fs, tmpPath)
	if err != nil {
		return fail(err)
	}
	if !info.Canonical() {
		return fail(fmt.Errorf("%s: decoder produced %d Hz, %d channel(s), %d-bit: %w",
			tmpPath, info.SampleRate, info.Channels, info.BitDepth, ErrInvalidWAV))
	}
	n.Logger.Info("audio converted",
		"target", tmpPath,
		"sample_rate", info.SampleRate,
		"channels", info.Channels,
		"duration", info.Duration,
	)

	return out, nil
}
