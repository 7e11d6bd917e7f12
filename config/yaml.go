package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the optional defaults file consulted before flags.
const DefaultFile = "~/.config/whisper-stream/config.yaml"

// YAML is a kong configuration loader. Keys match long flag names, with
// dashes or underscores:
//
//	volume: 2%
//	silence: 1.0
//	pipe_to: wc -w
func YAML(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	var f kong.ResolverFunc = func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		for _, key := range []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")} {
			if v, ok := values[key]; ok && v != nil {
				return fmt.Sprint(v), nil
			}
		}
		return nil, nil
	}
	return f, nil
}
