package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

// Metrics describes one transcription request as seen by the traced client.
type Metrics struct {
	File       string
	SizeKB     float64
	Attempts   int
	DNSMs      float64
	ConnectMs  float64
	TLSMs      float64
	UploadMs   float64
	TTFBMs     float64
	DownloadMs float64
	TotalMs    float64
	ConnReused bool
	Endpoint   string
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: --log-path flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: WHISPER_STREAM_LOG_PATH environment variable
	envPath := os.Getenv("WHISPER_STREAM_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcribePath := filepath.Join(dir, "transcribe_log.txt")
	transcribeFile, err = os.OpenFile(transcribePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func TranscriptionMetrics(m Metrics) {
	if !logReady {
		return
	}

	connStatus := "new"
	if m.ConnReused {
		connStatus = "reused"
	}

	diagLog.Info().
		Str("file", m.File).
		Str("endpoint", m.Endpoint).
		Str("conn", connStatus).
		Int("attempts", m.Attempts).
		Float64("size_kb", m.SizeKB).
		Float64("dns_ms", m.DNSMs).
		Float64("connect_ms", m.ConnectMs).
		Float64("tls_ms", m.TLSMs).
		Float64("upload_ms", m.UploadMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("download_ms", m.DownloadMs).
		Float64("total_ms", m.TotalMs).
		Msg("transcription")
}

func TranscriptionFailed(file string, attempts int, err error) {
	if !logReady {
		return
	}
	diagLog.Error().
		Str("file", file).
		Int("attempts", attempts).
		Err(err).
		Msg("transcription_failed")
}

func TranscriptionText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}

func SegmentRecorded(path string, size int64, elapsed time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("file", path).
		Float64("size_kb", float64(size)/1024).
		Float64("record_s", elapsed.Seconds()).
		Msg("segment")
}

func SessionStart(id, model, mode string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", id).
		Str("model", model).
		Str("mode", mode).
		Msg("session_start")
}

func SessionEnd(count int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("count", count).
		Msg("session_end")
}
