package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"whisperstream/clipboard"
	"whisperstream/config"
	"whisperstream/doctor"
	"whisperstream/log"
	"whisperstream/metrics"
	"whisperstream/pipeline"
	"whisperstream/recorder"
	"whisperstream/shutdown"
	"whisperstream/transcriber"
	"whisperstream/transcript"
)

var version = "dev"

const metricsReadHeaderTimeout = 5 * time.Second

type CLI struct {
	Volume        string  `short:"v" default:"1%" help:"Minimum volume threshold, % appended when missing."`
	Silence       float64 `short:"s" default:"1.5" help:"Seconds of silence that end a segment."`
	Oneshot       bool    `short:"o" help:"Record a single segment, transcribe it and exit."`
	Duration      int     `short:"d" default:"0" help:"Maximum segment length in seconds (0 = until silence)."`
	Token         string  `short:"t" env:"OPENAI_API_KEY" help:"OpenAI API key."`
	Path          string  `short:"p" help:"Directory for the final transcription file."`
	Granularities string  `short:"g" enum:"none,segment,word" default:"none" help:"Timestamp granularity: none, segment or word."`
	Prompt        string  `short:"r" help:"Prompt sent with every segment."`
	Language      string  `short:"l" help:"Input language in ISO-639-1 format."`
	File          string  `short:"f" type:"path" help:"Transcribe this audio file instead of recording."`
	Translate     bool    `help:"Translate the transcription to English."`
	PipeTo        string  `name:"pipe-to" help:"Pipe each transcription to this shell command (e.g. 'wc -m')."`
	Quiet         bool    `short:"q" help:"Suppress the banner and settings."`

	Model       string `default:"whisper-1" help:"Transcription model."`
	APIURL      string `name:"api-url" default:"https://api.openai.com/v1/audio" help:"Base URL of an OpenAI compatible audio API."`
	LogPath     string `name:"log-path" help:"Log directory (default: OS-specific location, use ./ for current dir)."`
	MetricsAddr string `name:"metrics-addr" help:"Serve Prometheus metrics on this address (e.g. :9090)."`
	Doctor      bool   `help:"Run system diagnostics and exit."`

	Config  kong.ConfigFlag  `help:"YAML file with flag defaults."`
	Version kong.VersionFlag `short:"V" help:"Print version and exit."`
}

func (c *CLI) config() config.Config {
	return config.Config{
		MinVolume:     c.Volume,
		SilenceLength: c.Silence,
		OneShot:       c.Oneshot,
		Duration:      c.Duration,
		Model:         c.Model,
		Token:         c.Token,
		APIURL:        c.APIURL,
		OutputDir:     c.Path,
		Prompt:        c.Prompt,
		Language:      c.Language,
		Translate:     c.Translate,
		PipeTo:        c.PipeTo,
		Quiet:         c.Quiet,
		Granularity:   config.Granularity(c.Granularities),
		File:          c.File,
	}
}

type reporter interface {
	pipeline.Reporter
	Close()
}

func main() {
	os.Exit(run())
}

func loadEnvFiles() {
	envFiles := []string{".env", "whisper-stream.env"}
	if home, err := os.UserHomeDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(home, ".config", "whisper-stream.env"))
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", f, err)
		}
	}
}

// metricsServer exposes m on /metrics.
func metricsServer(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}
}

func fatal(err error) int {
	log.Errorf("fatal: %v", err)
	fmt.Fprintln(os.Stderr, errStyle.Render("Error: "+err.Error()))
	return 1
}

func run() int {
	loadEnvFiles()

	var cli CLI
	kong.Parse(&cli,
		kong.Name("whisper-stream"),
		kong.Description("Record speech, split it on silence and transcribe each segment with the OpenAI audio API."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.Configuration(config.YAML, config.DefaultFile),
	)

	// Resolve log directory early
	logPath, err := log.ResolveDir(cli.LogPath)
	if err != nil {
		return fatal(fmt.Errorf("failed to resolve log directory: %w", err))
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	} else if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open log files: %v\n", err)
	}
	defer log.Close()

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if cli.Doctor {
		return doctor.Run(os.Stdout, doctor.Checks(doctor.Options{Token: cli.Token, APIURL: cli.APIURL}))
	}

	cfg, err := config.New(cli.config())
	if err != nil {
		return fatal(err)
	}

	seg := recorder.New(recorder.Config{
		MinVolume:     cfg.MinVolume,
		SilenceLength: cfg.SilenceLength,
		Duration:      cfg.Duration,
	})
	if cfg.File == "" {
		if err := seg.LookPath(); err != nil {
			return fatal(err)
		}
	}

	m := metrics.New()
	if cli.MetricsAddr != "" {
		go func() {
			if err := metricsServer(cli.MetricsAddr, m).ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("metrics server: %v", err)
			}
		}()
	}

	if !cfg.Quiet {
		printBanner(os.Stdout, cfg)
	}

	var rep reporter
	if term.IsTerminal(int(os.Stdout.Fd())) {
		rep = newTUIReporter()
	} else {
		rep = newConsoleReporter()
	}

	tr := transcriber.NewOpenAI(transcriber.Options{
		APIURL:          cfg.APIURL,
		Token:           cfg.Token,
		Model:           cfg.Model,
		Prompt:          cfg.Prompt,
		Language:        cfg.Language,
		Translate:       cfg.Translate,
		Granularity:     string(cfg.Granularity),
		OnAttemptFailed: pipeline.RetryHook(rep, m),
	})
	go tr.Warm()

	log.SessionStart(uuid.NewString(), cfg.Model, cfg.Mode())

	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	orch := pipeline.New(pipeline.Options{
		OneShot:     cfg.OneShot,
		File:        cfg.File,
		PipeTo:      cfg.PipeTo,
		ScratchPath: config.ScratchFile,
		Endpoint:    tr.Endpoint(),
		Metrics:     m,
		Finalize: transcript.FinalizeOptions{
			OutputDir: cfg.OutputDir,
			JSON:      cfg.Timestamps(),
			Copy:      clipboard.Copy,
		},
	}, seg, tr, rep)

	_, err = orch.Run(ctx)
	rep.Close()
	if err != nil {
		return fatal(err)
	}
	return 0
}
