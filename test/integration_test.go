//go:build integration

package test_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("WHISPER_STREAM_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "WHISPER_STREAM_TEST_BIN not set; build whisper-stream and point the variable at it")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func generateSilenceWAV(t *testing.T, path string, sampleRate int, durationS float64) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, int(float64(sampleRate)*durationS)),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

// fakeTools puts rec and sox stand-ins first on PATH. rec emits a few
// bytes and exits as if silence ended the segment.
func fakeTools(t *testing.T) string {
	t.Helper()
	bin := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
			t.Fatal(err)
		}
	}
	write("rec", "printf 'raw-pcm'")
	write("sox", "for last; do :; done\ncat > \"$last\"")
	return bin
}

type api struct {
	*httptest.Server
	posts atomic.Int32
}

func newAPI(t *testing.T, status int, body string) *api {
	t.Helper()
	a := &api{}
	a.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			return
		}
		a.posts.Add(1)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(a.Close)
	return a
}

type run struct {
	dir    string
	logDir string
	out    string
	code   int
}

func runWhisperStream(t *testing.T, env []string, args ...string) run {
	t.Helper()
	r := run{dir: t.TempDir(), logDir: t.TempDir()}
	cmd := exec.Command(testBinary, append([]string{"--log-path", r.logDir}, args...)...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), env...)

	out, err := cmd.CombinedOutput()
	r.out = string(out)
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		r.code = exitErr.ExitCode()
	default:
		t.Fatalf("whisper-stream did not run: %v", err)
	}
	return r
}

func glob(t *testing.T, dir, pattern string) []string {
	t.Helper()
	m, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestOneShot(t *testing.T) {
	srv := newAPI(t, http.StatusOK, `{"text":"integration works"}`)
	bin := fakeTools(t)
	outDir := t.TempDir()

	r := runWhisperStream(t, []string{"PATH=" + bin + string(os.PathListSeparator) + os.Getenv("PATH")},
		"-o", "-q", "-v", "2", "-s", "1.0", "-t", "sk-test", "--api-url", srv.URL, "-p", outDir)
	if r.code != 0 {
		t.Fatalf("exit code %d\n%s", r.code, r.out)
	}
	if !strings.Contains(r.out, "integration works") {
		t.Errorf("transcript not printed:\n%s", r.out)
	}
	if n := srv.posts.Load(); n != 1 {
		t.Errorf("uploads = %d, want 1", n)
	}
	if segs := glob(t, r.dir, "output_*.mp3"); len(segs) != 0 {
		t.Errorf("segments left behind: %v", segs)
	}
	if _, err := os.Stat(filepath.Join(r.dir, "temp_transcriptions.txt")); !os.IsNotExist(err) {
		t.Error("scratch transcript not removed")
	}
	files := glob(t, outDir, "transcription_*.txt")
	if len(files) != 1 {
		t.Fatalf("output files = %v", files)
	}
	data, _ := os.ReadFile(files[0])
	if string(data) != "integration works\n" {
		t.Errorf("output = %q", data)
	}
	journal, _ := os.ReadFile(filepath.Join(r.logDir, "transcribe_log.txt"))
	if !strings.Contains(string(journal), "integration works") {
		t.Error("transcribe_log.txt missing the transcript")
	}
}

func TestFileMode(t *testing.T) {
	srv := newAPI(t, http.StatusOK, `{"text":"from a file"}`)
	input := filepath.Join(t.TempDir(), "silence.wav")
	generateSilenceWAV(t, input, 16000, 1.0)

	r := runWhisperStream(t, nil, "-t", "sk-test", "--api-url", srv.URL, "-f", input)
	if r.code != 0 {
		t.Fatalf("exit code %d\n%s", r.code, r.out)
	}
	if !strings.Contains(r.out, "from a file") || !strings.Contains(r.out, "Duration: 1s") {
		t.Errorf("output:\n%s", r.out)
	}
	if _, err := os.Stat(input); err != nil {
		t.Error("input file must not be deleted")
	}
}

func TestRetriesExhausted(t *testing.T) {
	srv := newAPI(t, http.StatusInternalServerError, `{"error":{"message":"down"}}`)
	bin := fakeTools(t)

	r := runWhisperStream(t, []string{"PATH=" + bin + string(os.PathListSeparator) + os.Getenv("PATH")},
		"-o", "-q", "-t", "sk-test", "--api-url", srv.URL)
	if r.code != 0 {
		t.Fatalf("a failed upload must not fail the session, exit code %d\n%s", r.code, r.out)
	}
	if n := srv.posts.Load(); n != 3 {
		t.Errorf("uploads = %d, want 3", n)
	}
	if !strings.Contains(r.out, "...") {
		t.Errorf("expected one dot per failed attempt:\n%s", r.out)
	}
}

func TestFatalConfiguration(t *testing.T) {
	srv := newAPI(t, http.StatusOK, `{"text":"unused"}`)
	big := filepath.Join(t.TempDir(), "big.mp3")
	f, err := os.Create(big)
	if err != nil {
		t.Fatal(err)
	}
	f.Truncate(26214401)
	f.Close()

	for name, tc := range map[string]struct {
		env  []string
		args []string
	}{
		"missing key":     {[]string{"OPENAI_API_KEY="}, []string{"-f", big}},
		"oversized file":  {nil, []string{"-t", "sk-test", "-f", big}},
		"missing out dir": {nil, []string{"-t", "sk-test", "-p", "/does/not/exist"}},
		"missing rec":     {[]string{"PATH=" + t.TempDir()}, []string{"-t", "sk-test"}},
	} {
		t.Run(name, func(t *testing.T) {
			r := runWhisperStream(t, tc.env, append(tc.args, "--api-url", srv.URL)...)
			if r.code != 1 {
				t.Errorf("exit code %d, want 1\n%s", r.code, r.out)
			}
		})
	}
	if n := srv.posts.Load(); n != 0 {
		t.Errorf("uploads = %d, want none", n)
	}
}
