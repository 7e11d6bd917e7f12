package transcript

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const timeLayout = "2006-01-02T15-04-05"

var ErrClosed = errors.New("transcript closed")

// Scratch is the running transcript. Every appended result is written
// through to a file so a crashed session can be recovered by the next one.
type Scratch struct {
	path string

	mu     sync.Mutex
	file   *os.File
	lines  []string
	closed bool
}

func Open(path string) *Scratch {
	return &Scratch{path: path}
}

func (s *Scratch) Path() string { return s.path }

// Append writes text and a newline. The file is created on first use.
func (s *Scratch) Append(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.file == nil {
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open scratch transcript: %w", err)
		}
		s.file = f
	}
	if _, err := s.file.WriteString(text + "\n"); err != nil {
		return fmt.Errorf("append scratch transcript: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync scratch transcript: %w", err)
	}
	s.lines = append(s.lines, text)
	return nil
}

// Lines returns what this session appended.
func (s *Scratch) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// Close rejects further appends.
func (s *Scratch) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

type FinalizeOptions struct {
	OutputDir string
	JSON      bool
	Copy      func(string) error
	Now       func() time.Time
}

type Final struct {
	Text      string
	File      string // "" when no output dir was configured
	Copied    bool
	CopyErr   error
	Recovered bool // scratch left by an earlier session, nothing appended in this one
}

// Finalize folds the scratch file into the final transcript. It closes the
// scratch, writes the output file when an output dir is set and copies
// non-blank text with Copy. The scratch is removed only once the text is
// safely in the output file, or when there is no output dir; a failed write
// leaves it in place for the next session. Clipboard failures are reported
// in Final, never returned. Without a scratch file it returns a zero Final.
func (s *Scratch) Finalize(opts FinalizeOptions) (Final, error) {
	if err := s.Close(); err != nil {
		return Final{}, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Final{}, nil
	}
	if err != nil {
		return Final{}, fmt.Errorf("read scratch transcript: %w", err)
	}

	out := Final{Text: string(data), Recovered: len(s.Lines()) == 0 && len(data) > 0}
	var writeErr error
	if opts.OutputDir != "" {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		ext := ".txt"
		if opts.JSON {
			ext = ".json"
		}
		file := filepath.Join(opts.OutputDir, "transcription_"+now().UTC().Format(timeLayout)+ext)
		if err := os.WriteFile(file, data, 0644); err != nil {
			writeErr = fmt.Errorf("write transcript (kept in %s): %w", s.path, err)
		} else {
			out.File = file
		}
	}
	if opts.Copy != nil && strings.TrimSpace(out.Text) != "" {
		if err := opts.Copy(out.Text); err != nil {
			out.CopyErr = err
		} else {
			out.Copied = true
		}
	}
	if writeErr != nil {
		return out, writeErr
	}
	if err := os.Remove(s.path); err != nil {
		return out, fmt.Errorf("remove scratch transcript: %w", err)
	}
	return out, nil
}
