package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"whisperstream/pipeline"
	"whisperstream/transcript"
)

// consoleReporter writes plain lines, for pipes and dumb terminals.
type consoleReporter struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	dots   bool // a line of retry dots is open
}

func newConsoleReporter() *consoleReporter {
	return &consoleReporter{out: os.Stdout, errOut: os.Stderr}
}

func (r *consoleReporter) StateChanged(pipeline.State) {}
func (r *consoleReporter) Transcribing(string)         {}

func (r *consoleReporter) AttemptFailed(int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.errOut, dotStyle.Render("."))
	r.dots = true
}

func (r *consoleReporter) println(w io.Writer, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dots {
		fmt.Fprintln(r.errOut)
		r.dots = false
	}
	fmt.Fprintln(w, s)
}

func (r *consoleReporter) NoAudio()                  { r.println(r.out, "No audio recorded.") }
func (r *consoleReporter) Transcription(text string) { r.println(r.out, text) }
func (r *consoleReporter) Error(err error)           { r.println(r.errOut, "Error: "+err.Error()) }

func (r *consoleReporter) PipeOutput(out string) {
	r.println(r.out, strings.TrimRight(out, "\n"))
}

func (r *consoleReporter) Finalized(f transcript.Final) { printFinal(&f) }

func (r *consoleReporter) Close() {}

func printFinal(f *transcript.Final) {
	if f.File != "" {
		fmt.Println(dimStyle.Render("Transcription saved to " + f.File))
	}
	if f.Copied {
		fmt.Println(noticeStyle.Render("Transcription copied to clipboard."))
	}
	if f.CopyErr != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("Error copying to clipboard: "+f.CopyErr.Error()))
	}
}
