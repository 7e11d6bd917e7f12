package audio

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const probeTimeout = 2 * time.Second

// InputDevice returns a human readable name for the current capture device,
// or "" when it cannot be determined. Probing is best-effort.
func InputDevice() string {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	return strings.TrimSpace(inputDevice(ctx))
}

// InputVolume returns the capture volume as a percentage string, or "".
func InputVolume() string {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	return strings.TrimSpace(inputVolume(ctx))
}

func sh(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return string(out), err
}

var (
	arecordCardRe = regexp.MustCompile(`(?m)^card (\d+):.*\[`)
	amixerLeftRe  = regexp.MustCompile(`Left:.*\[(\d+%)\]`)
)

// parseArecordCard extracts the first capture card from `arecord -l` output.
func parseArecordCard(out string) string {
	m := arecordCardRe.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	return "hw:" + m[1]
}

// parseAmixerVolume extracts the left channel level from `amixer sget Capture`.
func parseAmixerVolume(out string) string {
	m := amixerLeftRe.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	return m[1]
}
