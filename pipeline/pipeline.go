package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"whisperstream/log"
	"whisperstream/metrics"
	"whisperstream/recorder"
	"whisperstream/transcriber"
	"whisperstream/transcript"
)

// queueSize bounds segments waiting for the worker. Recording blocks once
// it is full.
const queueSize = 32

var ErrRecorder = errors.New("recording failed")

type Segmenter interface {
	Start(ctx context.Context) (*recorder.Recording, error)
}

type Options struct {
	OneShot     bool
	File        string // user supplied input, transcribed once and never deleted
	PipeTo      string
	ScratchPath string
	Endpoint    string // for diagnostics only
	Finalize    transcript.FinalizeOptions
	Metrics     *metrics.Metrics
}

// Orchestrator owns one session: it records segments, hands them to a
// single transcription worker in order and finalizes the transcript.
type Orchestrator struct {
	opts    Options
	seg     Segmenter
	tr      transcriber.Transcriber
	report  Reporter
	scratch *transcript.Scratch
	metrics *metrics.Metrics

	mu    sync.Mutex
	state State
	live  map[string]struct{}
}

func New(opts Options, seg Segmenter, tr transcriber.Transcriber, report Reporter) *Orchestrator {
	if report == nil {
		report = nopReporter{}
	}
	return &Orchestrator{
		opts:    opts,
		seg:     seg,
		tr:      tr,
		report:  report,
		scratch: transcript.Open(opts.ScratchPath),
		metrics: opts.Metrics,
		live:    map[string]struct{}{},
	}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	changed := o.state != s
	o.state = s
	o.mu.Unlock()
	if changed {
		o.report.StateChanged(s)
	}
}

// Run drives the session until ctx is cancelled, the one-shot segment or
// input file is transcribed, or recording fails in one-shot mode. It always
// finalizes before returning.
func (o *Orchestrator) Run(ctx context.Context) (transcript.Final, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if o.opts.File != "" {
		o.setState(Transcribing)
		o.transcribe(runCtx, o.opts.File, false)
		return o.shutdown(cancel, nil, nil)
	}

	jobs := make(chan recorder.Segment, queueSize)
	transcribed := make(chan struct{}, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		o.worker(runCtx, jobs, transcribed)
	}()

	runErr := o.record(runCtx, jobs, transcribed)
	close(jobs)
	return o.shutdown(cancel, wg.Wait, runErr)
}

func (o *Orchestrator) record(ctx context.Context, jobs chan<- recorder.Segment, transcribed <-chan struct{}) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		o.setState(Recording)
		started := time.Now()
		rec, err := o.seg.Start(ctx)
		if err != nil {
			return o.recorderFailed(ctx, err)
		}
		o.track(rec.Path())

		out, ok := o.await(ctx, rec)
		if !ok {
			return nil
		}
		switch {
		case out.Err != nil:
			o.untrack(rec.Path())
			return o.recorderFailed(ctx, out.Err)
		case out.NoAudio:
			o.untrack(rec.Path())
			log.Info("no_audio")
			o.metrics.NoAudio()
			o.report.NoAudio()
			if o.opts.OneShot {
				return nil
			}
			continue
		}

		log.SegmentRecorded(out.Segment.Path, out.Segment.Size, time.Since(started))
		o.metrics.Segment(out.Segment.Size)
		select {
		case jobs <- out.Segment:
		case <-ctx.Done():
			return nil
		}

		if o.opts.OneShot {
			o.setState(Transcribing)
			select {
			case <-transcribed:
			case <-ctx.Done():
			}
			return nil
		}
	}
}

// await follows one recording through capture and encoding. It returns
// false when ctx ended first; the recording is then stopped.
func (o *Orchestrator) await(ctx context.Context, rec *recorder.Recording) (recorder.Outcome, bool) {
	select {
	case <-rec.Captured():
		o.setState(Encoding)
	case <-ctx.Done():
		rec.Stop()
		<-rec.Done()
		return recorder.Outcome{}, false
	}
	select {
	case out := <-rec.Done():
		return out, true
	case <-ctx.Done():
		rec.Stop()
		<-rec.Done()
		return recorder.Outcome{}, false
	}
}

// recorderFailed leaves recording inactive. One-shot sessions end with the
// error; continuous sessions keep what they have until interrupted.
func (o *Orchestrator) recorderFailed(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		// rec and sox share the terminal's process group, so Ctrl+C can
		// kill them before the signal reaches us.
		log.Warnf("recorder exited during shutdown: %v", err)
		return nil
	}
	log.Errorf("recorder error: %v", err)
	o.metrics.RecorderError()
	o.report.Error(fmt.Errorf("%w: %v", ErrRecorder, err))
	if o.opts.OneShot {
		return fmt.Errorf("%w: %v", ErrRecorder, err)
	}
	o.setState(Idle)
	<-ctx.Done()
	return nil
}

func (o *Orchestrator) worker(ctx context.Context, jobs <-chan recorder.Segment, transcribed chan<- struct{}) {
	for seg := range jobs {
		if ctx.Err() != nil {
			continue
		}
		o.transcribe(ctx, seg.Path, true)
		select {
		case transcribed <- struct{}{}:
		default:
		}
	}
}

// transcribe runs the result handler for one file: print, pipe, append to
// the scratch transcript, then delete the file if it is a recorded segment.
func (o *Orchestrator) transcribe(ctx context.Context, path string, owned bool) {
	if owned {
		defer o.remove(path)
	}
	o.report.Transcribing(path)
	start := time.Now()
	res, err := o.tr.Transcribe(ctx, path)
	if ctx.Err() != nil {
		o.discard(path)
		return
	}
	o.metrics.Transcription(res.Attempts, time.Since(start), err != nil)
	if err != nil {
		log.TranscriptionFailed(filepath.Base(path), res.Attempts, err)
		o.report.Error(err)
		return
	}
	o.logMetrics(path, res)
	log.TranscriptionText(res.Text)

	o.report.Transcription(res.Text)
	if o.opts.PipeTo != "" {
		out, err := pipe(ctx, o.opts.PipeTo, res.Text)
		if err != nil {
			log.Warnf("pipe command failed: %v", err)
			o.report.Error(fmt.Errorf("pipe command: %w", err))
		} else {
			o.report.PipeOutput(out)
		}
	}
	if err := o.scratch.Append(res.Text); err != nil {
		if errors.Is(err, transcript.ErrClosed) {
			o.discard(path)
			return
		}
		log.Errorf("scratch append: %v", err)
		o.report.Error(err)
	}
}

func (o *Orchestrator) discard(path string) {
	log.Warnf("discarding result for %s: shutting down", filepath.Base(path))
	o.metrics.Discarded()
}

func (o *Orchestrator) logMetrics(path string, res transcriber.Result) {
	m := log.Metrics{
		File:     filepath.Base(path),
		Attempts: res.Attempts,
		Endpoint: o.opts.Endpoint,
	}
	if info, err := os.Stat(path); err == nil {
		m.SizeKB = float64(info.Size()) / 1024
	}
	if nm := res.Metrics; nm != nil {
		m.DNSMs = ms(nm.DNS)
		m.ConnectMs = ms(nm.Connect)
		m.TLSMs = ms(nm.TLS)
		m.UploadMs = ms(nm.Upload)
		m.TTFBMs = ms(nm.TTFB)
		m.DownloadMs = ms(nm.Download)
		m.TotalMs = ms(nm.Total)
		m.ConnReused = nm.ConnReused
	}
	log.TranscriptionMetrics(m)
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// pipe feeds text to a shell command and returns its stdout.
func pipe(ctx context.Context, command, text string) (string, error) {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Stdin = strings.NewReader(text + "\n")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return string(out), nil
}

// shutdown closes the scratch transcript before cancelling so results that
// race the interrupt are dropped, waits for the worker, clears leftover
// segments and finalizes.
func (o *Orchestrator) shutdown(cancel context.CancelFunc, wait func(), runErr error) (transcript.Final, error) {
	o.setState(ShuttingDown)
	o.scratch.Close()
	cancel()
	if wait != nil {
		wait()
	}
	o.removeLive()

	final, err := o.scratch.Finalize(o.opts.Finalize)
	log.SessionEnd(len(o.scratch.Lines()))
	if err != nil {
		log.Errorf("finalize: %v", err)
	}
	if final.CopyErr != nil {
		log.Warnf("clipboard copy failed: %v", final.CopyErr)
	}
	o.report.Finalized(final)
	o.setState(Terminated)
	return final, errors.Join(runErr, err)
}

func (o *Orchestrator) track(path string) {
	o.mu.Lock()
	o.live[path] = struct{}{}
	o.mu.Unlock()
}

func (o *Orchestrator) untrack(path string) {
	o.mu.Lock()
	delete(o.live, path)
	o.mu.Unlock()
}

func (o *Orchestrator) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("remove segment: %v", err)
	}
	o.untrack(path)
}

func (o *Orchestrator) removeLive() {
	o.mu.Lock()
	paths := make([]string, 0, len(o.live))
	for p := range o.live {
		paths = append(paths, p)
	}
	o.mu.Unlock()
	for _, p := range paths {
		o.remove(p)
	}
}
