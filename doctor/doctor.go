package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"whisperstream/audio"
	"whisperstream/clipboard"
	"whisperstream/config"
	"whisperstream/log"
	"whisperstream/recorder"
)

// ErrOptional marks a check whose failure degrades the session without
// preventing it. Such checks print WARN instead of FAIL.
var ErrOptional = errors.New("optional")

type Check struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

type Options struct {
	Token  string
	APIURL string
	Client *http.Client
}

func Checks(opts Options) []Check {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return []Check{
		{"Audio tools", checkTools},
		{"Input device", checkDevice},
		{"API key", func(ctx context.Context) (string, error) { return checkAPI(ctx, opts) }},
		{"Clipboard", checkClipboard},
		{"Log directory", checkLogDir},
	}
}

// Run executes the checks in order and returns an exit code (0=all pass, 1=any fail).
func Run(w io.Writer, checks []Check) int {
	fmt.Fprintln(w, "whisper-stream doctor - system diagnostics")
	fmt.Fprintln(w, "==========================================")

	allPass := true
	for i, c := range checks {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "[%d/%d] %s\n", i+1, len(checks), c.Name)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		msg, err := c.Run(ctx)
		cancel()
		switch {
		case err == nil:
			fmt.Fprintf(w, "  PASS: %s\n", msg)
		case errors.Is(err, ErrOptional):
			fmt.Fprintf(w, "  WARN: %s\n", strings.TrimSuffix(err.Error(), ": "+ErrOptional.Error()))
		default:
			fmt.Fprintf(w, "  FAIL: %v\n", err)
			allPass = false
		}
	}

	fmt.Fprintln(w)
	if allPass {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintln(w, "Some checks failed. See details above.")
	return 1
}

func optional(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrOptional)...)
}

func checkTools(ctx context.Context) (string, error) {
	if err := recorder.New(recorder.Config{}).LookPath(); err != nil {
		return "", err
	}
	out, err := exec.CommandContext(ctx, recorder.EncodeCmd, "--version").Output()
	if err != nil {
		return "rec and sox found", nil
	}
	return strings.TrimSpace(string(out)), nil
}

func checkDevice(context.Context) (string, error) {
	dev := audio.InputDevice()
	if dev == "" {
		return "", optional("could not determine the default input device")
	}
	msg := dev
	if vol := audio.InputVolume(); vol != "" {
		msg += " at " + vol
	}
	if audio.IsBluetooth(dev) {
		return "", optional("%s is a Bluetooth device, expect reduced quality", msg)
	}
	return msg, nil
}

// checkAPI lists models with the configured key. The models endpoint sits
// next to the audio endpoints on OpenAI compatible servers.
func checkAPI(ctx context.Context, opts Options) (string, error) {
	token := opts.Token
	if token == "" {
		token = os.Getenv(config.CredentialEnv)
	}
	if token == "" {
		return "", config.ErrNoCredential
	}
	base := strings.TrimSuffix(strings.TrimRight(opts.APIURL, "/"), "/audio")
	req, err := http.NewRequestWithContext(ctx, "GET", base+"/models", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := opts.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("cannot reach %s: %w", base, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("key rejected by %s (HTTP %d)", base, resp.StatusCode)
	case resp.StatusCode >= 300:
		return "", optional("%s answered HTTP %d", base, resp.StatusCode)
	}
	return "key accepted by " + base, nil
}

func checkClipboard(context.Context) (string, error) {
	if !clipboard.Available() {
		return "", optional("no clipboard utility found, install xclip, xsel or wl-clipboard")
	}
	return "clipboard available", nil
}

func checkLogDir(context.Context) (string, error) {
	if err := log.EnsureDir(); err != nil {
		return "", err
	}
	probe := filepath.Join(log.Dir(), ".doctor")
	if err := os.WriteFile(probe, nil, 0644); err != nil {
		return "", fmt.Errorf("%s is not writable: %w", log.Dir(), err)
	}
	os.Remove(probe)
	return log.Dir(), nil
}
