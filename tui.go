package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"whisperstream/pipeline"
	"whisperstream/transcriber"
	"whisperstream/transcript"
)

// TUI message types
type StateMsg struct{ State pipeline.State }
type TranscribingMsg struct{}
type AttemptFailedMsg struct{ Attempt int }
type TranscriptionDoneMsg struct{}
type tickMsg time.Time

var spinChars = []string{"|", "/", "-", `\`}

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	spinStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dotStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	pipeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
)

// tuiModel is a single status line drawn below the printed transcript.
type tuiModel struct {
	state        pipeline.State
	stateSince   time.Time
	transcribing bool
	failed       int // failed attempts of the current upload
	frame        int
	now          time.Time
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.frame++
		m.now = time.Time(msg)
		return m, tuiTick()

	case StateMsg:
		m.state = msg.State
		m.stateSince = time.Now()
		m.now = m.stateSince

	case TranscribingMsg:
		m.transcribing = true
		m.failed = 0

	case AttemptFailedMsg:
		m.failed = msg.Attempt

	case TranscriptionDoneMsg:
		m.transcribing = false
		m.failed = 0
	}
	return m, nil
}

func (m tuiModel) View() string {
	var parts []string
	switch m.state {
	case pipeline.Recording:
		elapsed := m.now.Sub(m.stateSince).Seconds()
		if elapsed < 0 {
			elapsed = 0
		}
		parts = append(parts, recStyle.Render(fmt.Sprintf("● REC %.1fs", elapsed)))
	case pipeline.Encoding:
		parts = append(parts, dimStyle.Render("◍ encoding"))
	case pipeline.Idle:
		parts = append(parts, dimStyle.Render("○ recording stopped, press Ctrl+C to finish"))
	case pipeline.ShuttingDown, pipeline.Terminated:
		return ""
	}
	if m.transcribing || m.state == pipeline.Transcribing {
		spin := spinStyle.Render(spinChars[m.frame%len(spinChars)]) + " transcribing"
		if m.failed > 0 {
			spin += " " + dotStyle.Render(strings.Repeat(".", m.failed))
		}
		parts = append(parts, spin)
	}
	return strings.Join(parts, "  ")
}

// tuiReporter renders pipeline events inline: transcripts scroll above a
// live status line. It never reads stdin and leaves signals to the caller.
type tuiReporter struct {
	p    *tea.Program
	done chan struct{}

	mu    sync.Mutex
	final *transcript.Final
}

func newTUIReporter() *tuiReporter {
	r := &tuiReporter{
		p: tea.NewProgram(tuiModel{now: time.Now(), stateSince: time.Now()},
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		),
		done: make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		r.p.Run()
	}()
	return r
}

func (r *tuiReporter) StateChanged(s pipeline.State) { r.p.Send(StateMsg{State: s}) }
func (r *tuiReporter) Transcribing(string)           { r.p.Send(TranscribingMsg{}) }
func (r *tuiReporter) AttemptFailed(n int)           { r.p.Send(AttemptFailedMsg{Attempt: n}) }

func (r *tuiReporter) NoAudio() {
	r.p.Println(dimStyle.Render("No audio recorded."))
}

func (r *tuiReporter) Transcription(text string) {
	r.p.Send(TranscriptionDoneMsg{})
	r.p.Println(text)
}

func (r *tuiReporter) PipeOutput(out string) {
	r.p.Println(pipeStyle.Render(strings.TrimRight(out, "\n")))
}

func (r *tuiReporter) Error(err error) {
	if errors.Is(err, transcriber.ErrRetriesExhausted) {
		r.p.Send(TranscriptionDoneMsg{})
	}
	r.p.Println(errStyle.Render("Error: " + err.Error()))
}

func (r *tuiReporter) Finalized(f transcript.Final) {
	r.mu.Lock()
	r.final = &f
	r.mu.Unlock()
}

// Close stops the status line and prints the session summary below it.
func (r *tuiReporter) Close() {
	r.p.Quit()
	<-r.done
	r.mu.Lock()
	f := r.final
	r.mu.Unlock()
	if f != nil {
		printFinal(f)
	}
}
