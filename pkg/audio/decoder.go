package audio

import (
	"context"
	"fmt"
	"strconv"

	"github.com/notescribe/notescribe/pkg/scribeexec"
)

// TargetSampleRate is the rate every speech backend expects.
const TargetSampleRate = 16000

// Decoder converts a source container into a 16 kHz mono 16-bit PCM wav
// written at dst. dst already exists and must be overwritten.
type Decoder interface {
	Decode(ctx context.Context, src Source, dst string) error
}

// FFmpegDecoder decodes anything ffmpeg can read.
type FFmpegDecoder struct {
	Bin    string
	Runner scribeexec.Runner
}

// NewFFmpegDecoder returns a decoder running bin ("ffmpeg" when empty).
func NewFFmpegDecoder(bin string, runner scribeexec.Runner) *FFmpegDecoder {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpegDecoder{Bin: bin, Runner: runner}
}

func (d *FFmpegDecoder) Decode(ctx context.Context, src Source, dst string) error {
	if _, err := d.Runner.Run(ctx, d.Bin, ffmpegArgs(src, dst)...); err != nil {
		return fmt.Errorf("ffmpeg decode %s: %w", src.Path, err)
	}
	return nil
}

func ffmpegArgs(src Source, dst string) []string {
	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error", "-y"}
	// Windows Media files are ASF containers; naming the demuxer avoids
	// misprobing short recordings.
	if src.Format == FormatWMA || src.Format == FormatASF {
		args = append(args, "-f", "asf")
	}
	return append(args,
		"-i", src.Path,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(TargetSampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		dst,
	)
}
