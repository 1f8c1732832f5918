package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crunch/internal/options"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crunch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvPath, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, EngineLocal, cfg.Engine.Kind)
	assert.True(t, cfg.Notify)

	opts, err := cfg.ProcessingOptions()
	require.NoError(t, err)
	assert.Equal(t, options.Default(), opts)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
output_dir: /tmp/out
workers: 3
defaults:
  format: jpg
  quality: 65
  width: 1280
  keep_metadata: true
  compression: lossy
log:
  level: debug
report:
  path: report.parquet
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "report.parquet", cfg.Report.Path)

	opts, err := cfg.ProcessingOptions()
	require.NoError(t, err)
	assert.Equal(t, options.FormatJPEG, opts.Format)
	assert.Equal(t, 65, opts.Quality)
	require.NotNil(t, opts.ResizeWidth)
	assert.Equal(t, 1280, *opts.ResizeWidth)
	assert.Nil(t, opts.ResizeHeight)
	assert.True(t, opts.KeepMetadata)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "defaults:\n  format: png\nworkers: 2\n")
	t.Setenv("CRUNCH_FORMAT", "webp")
	t.Setenv("CRUNCH_WORKERS", "6")
	t.Setenv("CRUNCH_ENGINE", "process")
	t.Setenv("CRUNCH_ENGINE_COMMAND", "/usr/bin/crunch-engine")
	t.Setenv("CRUNCH_ENGINE_ARGS", "--fast --verbose")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "webp", cfg.Defaults.Format)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, EngineProcess, cfg.Engine.Kind)
	assert.Equal(t, []string{"--fast", "--verbose"}, cfg.Engine.Args)
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	path := writeConfig(t, "output_dir: /from/env\n")
	t.Setenv(EnvPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.OutputDir)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")

	_, err = Load(writeConfig(t, "colour: blue\n"))
	assert.ErrorContains(t, err, "failed to parse")

	_, err = Load(writeConfig(t, "engine:\n  kind: process\n"))
	assert.ErrorContains(t, err, "engine.command is required")

	_, err = Load(writeConfig(t, "defaults:\n  format: heic\n"))
	assert.ErrorContains(t, err, "unsupported output format")

	t.Setenv("CRUNCH_WORKERS", "many")
	_, err = Load(writeConfig(t, ""))
	assert.ErrorContains(t, err, "CRUNCH_WORKERS")
}

func TestProcessingOptionsRejectsNegativeSize(t *testing.T) {
	cfg := Default()
	cfg.Defaults.Width = -5
	_, err := cfg.ProcessingOptions()
	assert.ErrorContains(t, err, "resize width must be positive, got -5")

	t.Setenv("CRUNCH_HEIGHT", "-1")
	_, err = Load(writeConfig(t, ""))
	assert.ErrorContains(t, err, "resize height must be positive, got -1")
}

func TestProcessingOptionsZeroSizeMeansNoResize(t *testing.T) {
	cfg := Default()
	cfg.Defaults.Width = 320
	opts, err := cfg.ProcessingOptions()
	require.NoError(t, err)
	require.NotNil(t, opts.ResizeWidth)
	assert.Equal(t, 320, *opts.ResizeWidth)
	assert.Nil(t, opts.ResizeHeight)
}
