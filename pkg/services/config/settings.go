package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables that override CLI flag defaults,
// e.g. CASE_ATLAS_LOG_LEVEL.
const EnvPrefix = "CASE_ATLAS"

// Output formats of a report run.
const (
	FormatMarkdown = "markdown"
	FormatYAML     = "yaml"
	FormatText     = "text"
)

// Settings are the options of a report run.
type Settings struct {
	Plan            string `mapstructure:"config"`
	OutDir          string `mapstructure:"out"`
	Format          string `mapstructure:"format"`
	Columns         string `mapstructure:"columns"`
	Profile         string `mapstructure:"profile"`
	Font            string `mapstructure:"font"`
	Parallel        int    `mapstructure:"parallel"`
	ContinueOnError bool   `mapstructure:"continue-on-error"`
	LogLevel        string `mapstructure:"log-level"`
}

// LoadSettings reads settings from flags, falling back to CASE_ATLAS_*
// environment variables for flags that were not set.
func LoadSettings(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	switch s.Format {
	case FormatMarkdown, FormatYAML, FormatText:
	default:
		return nil, fmt.Errorf("unknown format %q (want %s, %s or %s)", s.Format, FormatMarkdown, FormatYAML, FormatText)
	}
	if s.Parallel < 1 {
		s.Parallel = 1
	}
	return &s, nil
}
