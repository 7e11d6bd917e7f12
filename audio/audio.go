package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// MaxUploadSize is the largest file the transcription endpoint accepts (25MB).
const MaxUploadSize = 26214400

var AcceptedFormats = []string{"m4a", "mp3", "webm", "mp4", "mpga", "wav", "mpeg", "flac", "ogg", "oga"}

var (
	ErrNotExist = errors.New("file does not exist")
	ErrEmpty    = errors.New("file is empty")
	ErrTooLarge = errors.New("file size is over 25MB")
	ErrFormat   = errors.New("file format is not acceptable")
)

// CheckInput validates a user-supplied audio file before any upload is attempted.
func CheckInput(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	if fi.Size() > MaxUploadSize {
		return fmt.Errorf("%w: %s", ErrTooLarge, path)
	}
	if !slices.Contains(AcceptedFormats, Ext(path)) {
		return fmt.Errorf("%w: %s", ErrFormat, path)
	}
	return nil
}

// Ext returns the lowercase extension of path without the leading dot.
func Ext(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", "bluez", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
