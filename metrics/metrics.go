package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts the session's pipeline activity. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SegmentsRecorded prometheus.Counter
	SegmentsNoAudio  prometheus.Counter
	SegmentBytes     prometheus.Histogram
	RecorderErrors   prometheus.Counter

	TranscriptionAttempts prometheus.Counter
	TranscriptionRetries  prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionDuration prometheus.Histogram
	ResultsDiscarded      prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		SegmentsRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "whisper_stream_segments_recorded_total",
			Help: "Segments written by the encoder",
		}),
		SegmentsNoAudio: f.NewCounter(prometheus.CounterOpts{
			Name: "whisper_stream_segments_no_audio_total",
			Help: "Recordings that ended without audio",
		}),
		SegmentBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_stream_segment_size_bytes",
			Help:    "Size of encoded segments",
			Buckets: prometheus.ExponentialBuckets(4096, 2, 12), // 4KB to ~8MB
		}),
		RecorderErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "whisper_stream_recorder_errors_total",
			Help: "Capture or encode process failures",
		}),
		TranscriptionAttempts: f.NewCounter(prometheus.CounterOpts{
			Name: "whisper_stream_transcription_attempts_total",
			Help: "Upload attempts, retries included",
		}),
		TranscriptionRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "whisper_stream_transcription_retries_total",
			Help: "Failed upload attempts",
		}),
		TranscriptionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "whisper_stream_transcription_failures_total",
			Help: "Segments that produced no text after all attempts",
		}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_stream_transcription_duration_seconds",
			Help:    "Time from upload start to decoded result",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 250ms to ~1 minute
		}),
		ResultsDiscarded: f.NewCounter(prometheus.CounterOpts{
			Name: "whisper_stream_results_discarded_total",
			Help: "Results that arrived after shutdown began",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Segment(size int64) {
	if m == nil {
		return
	}
	m.SegmentsRecorded.Inc()
	m.SegmentBytes.Observe(float64(size))
}

func (m *Metrics) NoAudio() {
	if m == nil {
		return
	}
	m.SegmentsNoAudio.Inc()
}

func (m *Metrics) RecorderError() {
	if m == nil {
		return
	}
	m.RecorderErrors.Inc()
}

func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.TranscriptionRetries.Inc()
}

// Transcription records one finished Transcribe call.
func (m *Metrics) Transcription(attempts int, elapsed time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.TranscriptionAttempts.Add(float64(attempts))
	if failed {
		m.TranscriptionFailures.Inc()
		return
	}
	m.TranscriptionDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) Discarded() {
	if m == nil {
		return
	}
	m.ResultsDiscarded.Inc()
}
