//go:build !linux

package audio

import (
	"context"
	"runtime"
	"strings"

	"github.com/gen2brain/malgo"
)

func inputDevice(ctx context.Context) string {
	if runtime.GOOS == "darwin" {
		if out, err := sh(ctx, "SwitchAudioSource", "-t", "input", "-c"); err == nil && out != "" {
			return out
		}
	}
	return malgoDefaultCapture()
}

func malgoDefaultCapture() string {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return ""
	}
	defer func() {
		mctx.Uninit()
		mctx.Free()
	}()
	devices, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return ""
	}
	for _, d := range devices {
		if d.IsDefault != 0 {
			return d.Name()
		}
	}
	return ""
}

func inputVolume(ctx context.Context) string {
	if runtime.GOOS != "darwin" {
		return ""
	}
	out, err := sh(ctx, "osascript", "-e", "input volume of (get volume settings)")
	if err != nil {
		return ""
	}
	out = strings.TrimSpace(out)
	if out == "" || out == "missing value" {
		return ""
	}
	return out + "%"
}
