package transcriber

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
)

// ErrRetriesExhausted is returned once every attempt failed. Callers treat it
// as "no usable text for this segment" and keep going.
var ErrRetriesExhausted = errors.New("failed to convert audio to text after multiple attempts")

// NetworkMetrics holds the timed phases of one upload. Upload runs from
// getting the connection until the multipart body is fully written.
type NetworkMetrics struct {
	DNS        time.Duration
	Connect    time.Duration
	TLS        time.Duration
	Upload     time.Duration
	TTFB       time.Duration
	Download   time.Duration
	Total      time.Duration
	ConnReused bool
}

// Result is one decoded transcription. Text holds either the plain text or,
// when timestamps were requested, the compacted verbose JSON payload.
type Result struct {
	Text     string
	Attempts int
	Metrics  *NetworkMetrics
}

type Transcriber interface {
	Transcribe(ctx context.Context, path string) (Result, error)
}

// Options configure the upload. Granularity "" or "none" selects plain text.
type Options struct {
	APIURL      string
	Token       string
	Model       string
	Prompt      string
	Language    string
	Translate   bool
	Granularity string

	MaxAttempts int
	RetryDelay  time.Duration
	// OnAttemptFailed runs after every failed attempt, including the last.
	OnAttemptFailed func(attempt int, err error)
}

func (o Options) timestamps() bool {
	return o.Granularity != "" && o.Granularity != "none"
}
