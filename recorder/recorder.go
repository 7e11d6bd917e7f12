package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	CaptureCmd = "rec"
	EncodeCmd  = "sox"
	SampleRate = 44100
)

var (
	ErrMissingTool = errors.New("required audio tool not found")
	ErrStopped     = errors.New("recording stopped")
)

type Config struct {
	MinVolume     string  // silence threshold, e.g. "1%"
	SilenceLength float64 // seconds below MinVolume that end a segment
	Duration      int     // hard cap in seconds, 0 = none
	Dir           string  // where segments are written, "" = working dir

	CaptureCmd string
	EncodeCmd  string
	Now        func() time.Time
}

type Segment struct {
	Path      string
	CreatedAt time.Time
	Size      int64
}

// Outcome is what a Recording produced once its encoder exited. Exactly one
// of Segment (Path != ""), NoAudio or Err is meaningful.
type Outcome struct {
	Segment Segment
	NoAudio bool
	Err     error
}

type Segmenter struct {
	cfg Config
}

func New(cfg Config) *Segmenter {
	if cfg.CaptureCmd == "" {
		cfg.CaptureCmd = CaptureCmd
	}
	if cfg.EncodeCmd == "" {
		cfg.EncodeCmd = EncodeCmd
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Segmenter{cfg: cfg}
}

// LookPath reports the first capture or encode tool missing from PATH.
func (s *Segmenter) LookPath() error {
	for _, name := range []string{s.cfg.CaptureCmd, s.cfg.EncodeCmd} {
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("%w: %s (install sox)", ErrMissingTool, name)
		}
	}
	return nil
}

func (s *Segmenter) captureArgs() []string {
	args := []string{"-q", "-V0", "-e", "signed", "-L", "-c", "1", "-b", "16",
		"-r", strconv.Itoa(SampleRate), "-t", "raw"}
	if s.cfg.Duration > 0 {
		args = append(args, "trim", "0", strconv.Itoa(s.cfg.Duration))
	}
	silence := strconv.FormatFloat(s.cfg.SilenceLength, 'f', -1, 64)
	return append(args, "-",
		"silence", "1", "0.1", s.cfg.MinVolume, "1", silence, s.cfg.MinVolume)
}

func encodeArgs(path string) []string {
	return []string{"-t", "raw", "-r", strconv.Itoa(SampleRate), "-b", "16", "-e", "signed", "-c", "1", "-", path}
}

// Start spawns the capture process piped into the encoder. The returned
// Recording reports a single Outcome once both have exited.
func (s *Segmenter) Start(ctx context.Context) (*Recording, error) {
	created := s.cfg.Now()
	path := filepath.Join(s.cfg.Dir, fmt.Sprintf("output_%d.mp3", created.UnixMilli()))

	runCtx, cancel := context.WithCancel(ctx)
	capture := exec.CommandContext(runCtx, s.cfg.CaptureCmd, s.captureArgs()...)
	encode := exec.CommandContext(runCtx, s.cfg.EncodeCmd, encodeArgs(path)...)

	pr, pw, err := os.Pipe()
	if err != nil {
		cancel()
		return nil, err
	}
	var captureErr, encodeErr bytes.Buffer
	capture.Stdout = pw
	capture.Stderr = &captureErr
	encode.Stdin = pr
	encode.Stderr = &encodeErr
	capture.WaitDelay = time.Second
	encode.WaitDelay = time.Second

	if err := capture.Start(); err != nil {
		pr.Close()
		pw.Close()
		cancel()
		return nil, fmt.Errorf("start %s: %w", s.cfg.CaptureCmd, err)
	}
	if err := encode.Start(); err != nil {
		pr.Close()
		pw.Close()
		cancel()
		capture.Wait()
		return nil, fmt.Errorf("start %s: %w", s.cfg.EncodeCmd, err)
	}
	// The children hold their own copies; the encoder only sees EOF once
	// every write end is closed.
	pr.Close()
	pw.Close()

	r := newRecording(path, cancel)
	go func() {
		cErr := capture.Wait()
		r.captureEnded()
		eErr := encode.Wait()
		r.finish(func() Outcome {
			if runCtx.Err() != nil || cErr != nil || eErr != nil {
				os.Remove(path)
			}
			if runCtx.Err() != nil {
				return Outcome{Err: ErrStopped}
			}
			if cErr != nil {
				return Outcome{Err: processError(s.cfg.CaptureCmd, cErr, &captureErr)}
			}
			if eErr != nil {
				return Outcome{Err: processError(s.cfg.EncodeCmd, eErr, &encodeErr)}
			}
			return inspect(path, created)
		}())
		cancel()
	}()
	return r, nil
}

func processError(name string, err error, stderr *bytes.Buffer) error {
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return fmt.Errorf("%s: %w", name, err)
}

func inspect(path string, created time.Time) Outcome {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		os.Remove(path)
		return Outcome{NoAudio: true}
	}
	return Outcome{Segment: Segment{Path: path, CreatedAt: created, Size: info.Size()}}
}

// Recording is a handle on one in-progress segment.
type Recording struct {
	path     string
	captured chan struct{}
	done     chan Outcome
	stop     func()

	stopOnce    sync.Once
	captureOnce sync.Once
}

func newRecording(path string, stop func()) *Recording {
	return &Recording{
		path:     path,
		captured: make(chan struct{}),
		done:     make(chan Outcome, 1),
		stop:     stop,
	}
}

// Path is where the encoder writes the segment.
func (r *Recording) Path() string { return r.path }

// Captured is closed once the capture process has exited and the encoder
// is flushing the segment.
func (r *Recording) Captured() <-chan struct{} { return r.captured }

// Done yields exactly one Outcome and is then closed.
func (r *Recording) Done() <-chan Outcome { return r.done }

// Stop kills both processes. The Outcome reports ErrStopped.
func (r *Recording) Stop() {
	r.stopOnce.Do(r.stop)
}

func (r *Recording) captureEnded() {
	r.captureOnce.Do(func() { close(r.captured) })
}

func (r *Recording) finish(o Outcome) {
	r.captureEnded()
	r.done <- o
	close(r.done)
}
