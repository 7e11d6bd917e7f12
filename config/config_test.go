package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisperstream/audio"
)

func TestNormalizeVolume(t *testing.T) {
	for in, want := range map[string]string{
		"2":    "2%",
		"2%":   "2%",
		"0.5":  "0.5%",
		" 2":   " 2%",
		"   ":  DefaultVolume,
		"":     DefaultVolume,
		"10%%": "10%%",
	} {
		assert.Equal(t, want, NormalizeVolume(in), "NormalizeVolume(%q)", in)
	}
}

func valid() Config {
	c := Default()
	c.Token = "sk-test"
	return c
}

func TestNewAppliesDefaults(t *testing.T) {
	c, err := New(Config{SilenceLength: 1, Token: "sk-test", MinVolume: "2", APIURL: "http://localhost:8080/v1/audio/"})
	require.NoError(t, err)
	assert.Equal(t, "2%", c.MinVolume)
	assert.Equal(t, DefaultModel, c.Model)
	assert.Equal(t, GranularityNone, c.Granularity)
	assert.Equal(t, "http://localhost:8080/v1/audio", c.APIURL)
	assert.Equal(t, "continuous", c.Mode())
	assert.False(t, c.Timestamps())
}

func TestNewCredentialFromEnv(t *testing.T) {
	t.Setenv(CredentialEnv, "sk-env")
	c := Default()
	c, err := New(c)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", c.Token)
}

func TestNewFlagCredentialWinsOverEnv(t *testing.T) {
	t.Setenv(CredentialEnv, "sk-env")
	c, err := New(valid())
	require.NoError(t, err)
	assert.Equal(t, "sk-test", c.Token)
}

func TestNewMissingCredential(t *testing.T) {
	t.Setenv(CredentialEnv, "")
	_, err := New(Default())
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestValidateOutputDir(t *testing.T) {
	c := valid()
	c.OutputDir = filepath.Join(t.TempDir(), "missing")
	assert.ErrorIs(t, c.Validate(), ErrOutputDir)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	c.OutputDir = file
	assert.ErrorIs(t, c.Validate(), ErrOutputDir)

	c.OutputDir = t.TempDir()
	assert.NoError(t, c.Validate())
}

func TestValidateInputFile(t *testing.T) {
	c := valid()
	c.File = filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(c.File, []byte("hello"), 0644))
	assert.ErrorIs(t, c.Validate(), audio.ErrFormat)

	c.File = filepath.Join(t.TempDir(), "clip.mp3")
	require.NoError(t, os.WriteFile(c.File, []byte("ID3"), 0644))
	assert.NoError(t, c.Validate())
	assert.Equal(t, "file", c.Mode())
}

func TestValidateFileCheckedBeforeCredential(t *testing.T) {
	c := Default()
	c.File = filepath.Join(t.TempDir(), "missing.mp3")
	assert.ErrorIs(t, c.Validate(), audio.ErrNotExist)
}

func TestValidateGranularity(t *testing.T) {
	c := valid()
	c.Granularity = "sentence"
	assert.ErrorIs(t, c.Validate(), ErrGranularity)

	c.Granularity = GranularityWord
	assert.NoError(t, c.Validate())
	assert.True(t, c.Timestamps())
}

func TestValidateRanges(t *testing.T) {
	c := valid()
	c.SilenceLength = 0
	assert.Error(t, c.Validate())

	c = valid()
	c.Duration = -1
	assert.Error(t, c.Validate())
}

func TestMode(t *testing.T) {
	c := valid()
	c.OneShot = true
	assert.Equal(t, "oneshot", c.Mode())
	c.File = "x.mp3"
	assert.Equal(t, "file", c.Mode())
}

func TestYAMLResolver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("volume: 2\nsilence: 0.8\npipe_to: wc -w\noneshot: true\n"), 0644))

	var cli struct {
		Volume  string  `default:"1%"`
		Silence float64 `default:"1.5"`
		PipeTo  string
		Oneshot bool
		Prompt  string
	}
	parser, err := kong.New(&cli, kong.Configuration(YAML, path))
	require.NoError(t, err)
	_, err = parser.Parse([]string{"--prompt", "meeting notes", "--silence", "2"})
	require.NoError(t, err)

	assert.Equal(t, "2", cli.Volume)
	assert.Equal(t, 2.0, cli.Silence, "flag must win over config file")
	assert.Equal(t, "wc -w", cli.PipeTo)
	assert.True(t, cli.Oneshot)
	assert.Equal(t, "meeting notes", cli.Prompt)
}

func TestYAMLResolverEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	var cli struct {
		Volume string `default:"1%"`
	}
	parser, err := kong.New(&cli, kong.Configuration(YAML, path))
	require.NoError(t, err)
	_, err = parser.Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, "1%", cli.Volume)
}
