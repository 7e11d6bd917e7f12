package audio

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
)

var ErrNoDuration = errors.New("duration not available for this format")

// Duration reads the container header of WAV and FLAC files. Other formats
// return ErrNoDuration; callers treat that as "unknown".
func Duration(path string) (time.Duration, error) {
	switch Ext(path) {
	case "wav":
		f, err := os.Open(path)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		d := wav.NewDecoder(f)
		if !d.IsValidFile() {
			return 0, fmt.Errorf("invalid wav file: %s", path)
		}
		return d.Duration()
	case "flac":
		stream, err := flac.ParseFile(path)
		if err != nil {
			return 0, fmt.Errorf("parse flac: %w", err)
		}
		defer stream.Close()
		if stream.Info.SampleRate == 0 || stream.Info.NSamples == 0 {
			return 0, ErrNoDuration
		}
		secs := float64(stream.Info.NSamples) / float64(stream.Info.SampleRate)
		return time.Duration(secs * float64(time.Second)), nil
	default:
		return 0, ErrNoDuration
	}
}
