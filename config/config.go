package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"whisperstream/audio"
)

const (
	DefaultVolume  = "1%"
	DefaultSilence = 1.5
	DefaultModel   = "whisper-1"
	DefaultAPIURL  = "https://api.openai.com/v1/audio"

	// ScratchFile mirrors every transcription result in the working directory
	// until the session is finalized.
	ScratchFile = "temp_transcriptions.txt"

	CredentialEnv = "OPENAI_API_KEY"
)

type Granularity string

const (
	GranularityNone    Granularity = "none"
	GranularitySegment Granularity = "segment"
	GranularityWord    Granularity = "word"
)

var (
	ErrNoCredential = errors.New("no OpenAI API key provided, set it with --token or " + CredentialEnv)
	ErrOutputDir    = errors.New("directory does not exist")
	ErrGranularity  = errors.New("granularity must be none, segment or word")
)

// Config is the resolved, read-only set of run parameters.
type Config struct {
	MinVolume     string
	SilenceLength float64
	OneShot       bool
	Duration      int // seconds, 0 = until silence
	Model         string
	Token         string
	APIURL        string
	OutputDir     string
	Prompt        string
	Language      string
	Translate     bool
	PipeTo        string
	Quiet         bool
	Granularity   Granularity
	File          string // user supplied audio, never deleted
}

// Default returns the settings used when no flag overrides them.
func Default() Config {
	return Config{
		MinVolume:     DefaultVolume,
		SilenceLength: DefaultSilence,
		Model:         DefaultModel,
		APIURL:        DefaultAPIURL,
		Granularity:   GranularityNone,
	}
}

// NormalizeVolume appends the percent sign sox expects for relative thresholds.
// The value is otherwise passed through as given.
func NormalizeVolume(v string) string {
	if strings.TrimSpace(v) == "" {
		return DefaultVolume
	}
	if !strings.HasSuffix(v, "%") {
		v += "%"
	}
	return v
}

// New normalizes and validates c. The returned error is always fatal.
func New(c Config) (Config, error) {
	c.MinVolume = NormalizeVolume(c.MinVolume)
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if c.Granularity == "" {
		c.Granularity = GranularityNone
	}
	if c.Token == "" {
		c.Token = os.Getenv(CredentialEnv)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.SilenceLength <= 0 {
		return fmt.Errorf("silence length must be positive, got %g", c.SilenceLength)
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %d", c.Duration)
	}
	switch c.Granularity {
	case GranularityNone, GranularitySegment, GranularityWord:
	default:
		return fmt.Errorf("%w: %q", ErrGranularity, c.Granularity)
	}
	if c.OutputDir != "" {
		fi, err := os.Stat(c.OutputDir)
		if err != nil || !fi.IsDir() {
			return fmt.Errorf("%w: %s", ErrOutputDir, c.OutputDir)
		}
	}
	if c.File != "" {
		if err := audio.CheckInput(c.File); err != nil {
			return err
		}
	}
	if c.Token == "" {
		return ErrNoCredential
	}
	return nil
}

// Timestamps reports whether results carry the structured payload.
func (c Config) Timestamps() bool {
	return c.Granularity != GranularityNone
}

func (c Config) Mode() string {
	switch {
	case c.File != "":
		return "file"
	case c.OneShot:
		return "oneshot"
	default:
		return "continuous"
	}
}
