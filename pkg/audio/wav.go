package audio

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// ErrInvalidWAV is returned for files that do not carry a RIFF/WAVE PCM stream.
var ErrInvalidWAV = errors.New("not a valid PCM wav file")

// WAVInfo describes a decodable waveform file.
type WAVInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// Canonical reports whether the file is already 16 kHz mono 16-bit PCM.
func (i WAVInfo) Canonical() bool {
	return i.SampleRate == TargetSampleRate && i.Channels == 1 && i.BitDepth == 16
}

// InspectWAV checks that path holds a valid PCM wav file and reads its format.
func InspectWAV(fs afero.Fs, path string) (WAVInfo, error) {
	f, err := fs.Open(path)
	if err != nil {
		return WAVInfo{}, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return WAVInfo{}, fmt.Errorf("%s: %w", path, ErrInvalidWAV)
	}

	if err := d.FwdToPCM(); err != nil {
		return WAVInfo{}, fmt.Errorf("%s: locate pcm data: %w", path, err)
	}

	info := WAVInfo{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}
	if bps := info.SampleRate * info.Channels * info.BitDepth / 8; bps > 0 {
		info.Duration = time.Duration(float64(d.PCMLen()) / float64(bps) * float64(time.Second))
	}
	return info, nil
}
