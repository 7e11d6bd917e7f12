package main

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisperstream/config"
	"whisperstream/metrics"
	"whisperstream/pipeline"
)

func parse(t *testing.T, args ...string) (*CLI, error) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("whisper-stream"), kong.Vars{"version": "test"})
	require.NoError(t, err)
	_, err = parser.Parse(args)
	return &cli, err
}

func TestCLIFlags(t *testing.T) {
	t.Setenv(config.CredentialEnv, "")
	cli, err := parse(t, "-v", "2", "-s", "1.0", "-o", "-t", "sk-test", "-g", "word", "--pipe-to", "wc -w", "-l", "de", "--translate")
	require.NoError(t, err)

	cfg, err := config.New(cli.config())
	require.NoError(t, err)
	assert.Equal(t, "2%", cfg.MinVolume)
	assert.Equal(t, 1.0, cfg.SilenceLength)
	assert.True(t, cfg.OneShot)
	assert.True(t, cfg.Translate)
	assert.Equal(t, "wc -w", cfg.PipeTo)
	assert.Equal(t, "de", cfg.Language)
	assert.Equal(t, config.GranularityWord, cfg.Granularity)
	assert.True(t, cfg.Timestamps())
	assert.Equal(t, config.DefaultAPIURL, cfg.APIURL)
}

func TestCLIDefaults(t *testing.T) {
	t.Setenv(config.CredentialEnv, "sk-env")
	cli, err := parse(t)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cli.Token)

	cfg, err := config.New(cli.config())
	require.NoError(t, err)
	assert.Equal(t, config.Default().MinVolume, cfg.MinVolume)
	assert.Equal(t, config.DefaultSilence, cfg.SilenceLength)
	assert.Equal(t, config.DefaultModel, cfg.Model)
	assert.Equal(t, "continuous", cfg.Mode())
}

func TestCLIRejectsUnknownGranularity(t *testing.T) {
	_, err := parse(t, "-g", "sentence")
	assert.Error(t, err)
}

func stubProbes(t *testing.T, device, volume string) {
	t.Helper()
	d, v := probeDevice, probeVolume
	probeDevice = func() string { return device }
	probeVolume = func() string { return volume }
	t.Cleanup(func() { probeDevice, probeVolume = d, v })
}

func TestBannerRecording(t *testing.T) {
	stubProbes(t, "bluez_input.AA_BB", "63%")
	cfg := config.Default()
	cfg.MinVolume = "2%"
	cfg.OutputDir = "/tmp/notes"

	var buf bytes.Buffer
	printBanner(&buf, cfg)
	out := buf.String()
	for _, want := range []string{
		"Whisper Stream Speech-to-Text Transcriber",
		"Volume threshold: 2%",
		"Silence length: 1.5 seconds",
		"Input language: Not specified",
		"Output Dir: /tmp/notes",
		"Input device: bluez_input.AA_BB",
		"(BT!)",
		"Input volume: 63%",
		"Ctrl+C",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Translate")
}

func TestBannerOmitsFailedProbes(t *testing.T) {
	stubProbes(t, "", "")
	var buf bytes.Buffer
	printBanner(&buf, config.Default())
	assert.NotContains(t, buf.String(), "Input device")
	assert.NotContains(t, buf.String(), "Input volume")
}

func TestBannerFileMode(t *testing.T) {
	stubProbes(t, "should not show", "")
	cfg := config.Default()
	cfg.File = "/tmp/meeting.mp3"
	cfg.Translate = true

	var buf bytes.Buffer
	printBanner(&buf, cfg)
	out := buf.String()
	assert.Contains(t, out, "Input file: /tmp/meeting.mp3")
	assert.Contains(t, out, "Translate to English: true")
	assert.Contains(t, out, "Please wait ...")
	assert.NotContains(t, out, "Volume threshold")
	assert.NotContains(t, out, "should not show")
}

func TestFormatSeconds(t *testing.T) {
	for in, want := range map[float64]string{1.5: "1.5", 2: "2", 10: "10", 0.25: "0.25"} {
		assert.Equal(t, want, formatSeconds(in))
	}
}

func TestConsoleReporter(t *testing.T) {
	var out, errOut bytes.Buffer
	r := &consoleReporter{out: &out, errOut: &errOut}

	r.AttemptFailed(1)
	r.AttemptFailed(2)
	r.Transcription("hello")
	r.NoAudio()
	r.PipeOutput("5\n")
	r.Error(errors.New("boom"))

	assert.Equal(t, "hello\nNo audio recorded.\n5\n", out.String())
	assert.Equal(t, "..\nError: boom\n", errOut.String())
}

func TestStatusLine(t *testing.T) {
	m := tuiModel{}
	update := func(msg any) {
		next, _ := m.Update(msg)
		m = next.(tuiModel)
	}

	update(StateMsg{State: pipeline.Recording})
	assert.Contains(t, m.View(), "REC")

	update(TranscribingMsg{})
	update(AttemptFailedMsg{Attempt: 2})
	assert.Contains(t, m.View(), "transcribing")
	assert.Contains(t, m.View(), "..")

	update(TranscriptionDoneMsg{})
	assert.NotContains(t, m.View(), "transcribing")

	update(StateMsg{State: pipeline.Idle})
	assert.True(t, strings.Contains(m.View(), "Ctrl+C"))

	update(StateMsg{State: pipeline.ShuttingDown})
	assert.Empty(t, m.View())
}

func TestMetricsServer(t *testing.T) {
	m := metrics.New()
	m.Segment(2048)
	srv := metricsServer(":9090", m)
	assert.Equal(t, ":9090", srv.Addr)
	assert.Positive(t, srv.ReadHeaderTimeout)

	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "whisper_stream_segments_recorded_total 1")
}
