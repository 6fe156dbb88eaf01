package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	flags.String("out", ".", "")
	flags.String("format", FormatMarkdown, "")
	flags.String("log-level", "info", "")
	flags.Int("parallel", 1, "")
	flags.Bool("continue-on-error", false, "")
	return flags
}

func TestLoadSettings_FlagsWin(t *testing.T) {
	// Given
	t.Setenv("CASE_ATLAS_FORMAT", "text")
	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--format", "yaml", "--parallel", "4", "--continue-on-error"}))

	// When
	s, err := LoadSettings(flags)

	// Then
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, s.Format)
	assert.Equal(t, 4, s.Parallel)
	assert.True(t, s.ContinueOnError)
	assert.Equal(t, ".", s.OutDir)
}

func TestLoadSettings_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("CASE_ATLAS_LOG_LEVEL", "debug")
	t.Setenv("CASE_ATLAS_FORMAT", "text")
	flags := newFlags()
	require.NoError(t, flags.Parse(nil))

	s, err := LoadSettings(flags)

	require.NoError(t, err)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, FormatText, s.Format)
}

func TestLoadSettings_RejectsUnknownFormat(t *testing.T) {
	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--format", "docx", "--parallel", "0"}))

	_, err := LoadSettings(flags)

	assert.EqualError(t, err, `unknown format "docx" (want markdown, yaml or text)`)
}
