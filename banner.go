package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"whisperstream/audio"
	"whisperstream/config"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	ruleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

const rule = "-----------------------------------------------"

// probes resolve the input device and volume lines; tests replace them.
var (
	probeDevice = audio.InputDevice
	probeVolume = audio.InputVolume
)

func printBanner(w io.Writer, cfg config.Config) {
	title := "Whisper Stream Speech-to-Text Transcriber"
	if cfg.File != "" {
		title = "Whisper Stream Transcriber"
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render(title), version)
	fmt.Fprintln(w, ruleStyle.Render(rule))
	fmt.Fprintln(w, "Current settings:")

	if cfg.File == "" {
		fmt.Fprintf(w, "  Volume threshold: %s\n", cfg.MinVolume)
		fmt.Fprintf(w, "  Silence length: %s seconds\n", formatSeconds(cfg.SilenceLength))
	}
	lang := cfg.Language
	if lang == "" {
		lang = "Not specified"
	}
	fmt.Fprintf(w, "  Input language: %s\n", lang)
	if cfg.Translate {
		fmt.Fprintln(w, "  Translate to English: true")
	}
	if cfg.OutputDir != "" {
		fmt.Fprintf(w, "  Output Dir: %s\n", cfg.OutputDir)
	}
	if cfg.Model != config.DefaultModel {
		fmt.Fprintf(w, "  Model: %s\n", cfg.Model)
	}

	if cfg.File != "" {
		fmt.Fprintf(w, "  Input file: %s\n", cfg.File)
		if d, err := audio.Duration(cfg.File); err == nil {
			fmt.Fprintf(w, "  Duration: %s\n", d.Round(100*time.Millisecond))
		}
		fmt.Fprintln(w, ruleStyle.Render(rule))
		fmt.Fprintln(w, keyStyle.Render("Please wait ..."))
		fmt.Fprintln(w)
		return
	}

	if dev := probeDevice(); dev != "" {
		line := "  Input device: " + dev
		if audio.IsBluetooth(dev) {
			line += " " + warningStyle.Render("(BT!)")
		}
		fmt.Fprintln(w, line)
	}
	if vol := probeVolume(); vol != "" {
		fmt.Fprintf(w, "  Input volume: %s\n", vol)
	}
	fmt.Fprintln(w, ruleStyle.Render(rule))
	fmt.Fprintln(w, "To stop the app, press "+keyStyle.Render("Ctrl+C"))
	fmt.Fprintln(w)
}

func formatSeconds(s float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", s), "0"), ".")
}
