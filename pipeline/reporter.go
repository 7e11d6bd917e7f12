package pipeline

import (
	"whisperstream/log"
	"whisperstream/metrics"
	"whisperstream/transcript"
)

// Reporter abstracts the display layer so the terminal UI and the plain
// console writer receive the same pipeline events. Calls may come from the
// control loop and the transcription worker concurrently.
type Reporter interface {
	StateChanged(s State)
	NoAudio()
	Transcribing(path string)
	AttemptFailed(attempt int)
	Transcription(text string)
	PipeOutput(out string)
	Error(err error)
	Finalized(f transcript.Final)
}

// RetryHook reports each failed upload attempt. It is meant for
// transcriber.Options.OnAttemptFailed.
func RetryHook(r Reporter, m *metrics.Metrics) func(attempt int, err error) {
	return func(attempt int, err error) {
		log.Warnf("transcription attempt %d failed: %v", attempt, err)
		m.Retry()
		if r != nil {
			r.AttemptFailed(attempt)
		}
	}
}

type nopReporter struct{}

func (nopReporter) StateChanged(State)         {}
func (nopReporter) NoAudio()                   {}
func (nopReporter) Transcribing(string)        {}
func (nopReporter) AttemptFailed(int)          {}
func (nopReporter) Transcription(string)       {}
func (nopReporter) PipeOutput(string)          {}
func (nopReporter) Error(error)                {}
func (nopReporter) Finalized(transcript.Final) {}
