//go:build linux

package audio

import (
	"context"

	"github.com/jfreymuth/pulse"
)

func inputDevice(ctx context.Context) string {
	if name := pulseDefaultSource(); name != "" {
		return name
	}
	out, err := sh(ctx, "arecord", "-l")
	if err != nil {
		return ""
	}
	return parseArecordCard(out)
}

func pulseDefaultSource() string {
	c, err := pulse.NewClient()
	if err != nil {
		return ""
	}
	defer c.Close()
	src, err := c.DefaultSource()
	if err != nil || src == nil {
		return ""
	}
	if name := src.Name(); name != "" {
		return name
	}
	return src.ID()
}

func inputVolume(ctx context.Context) string {
	out, err := sh(ctx, "amixer", "sget", "Capture")
	if err != nil {
		return ""
	}
	return parseAmixerVolume(out)
}
