package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/revchurn/pkg/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "svn", cfg.Source.Type)
	assert.Equal(t, 2*time.Minute, cfg.Source.Timeout)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, "abort", cfg.Pipeline.OnError)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, []string{"console"}, cfg.Output.Formats)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	configContent := `
source:
  type: git
  repository: /srv/repos/app
  timeout: 30s

pipeline:
  workers: 8
  on_error: skip

cache:
  enabled: true
  directory: /tmp/revchurn-cache

output:
  formats: [csv, json]
  per_revision: true
`

	tmpDir := t.TempDir()

	tmpFile, err := os.CreateTemp(tmpDir, "test-config-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString(configContent)
	require.NoError(t, writeErr)

	tmpFile.Close()

	cfg, loadErr := config.Load(tmpFile.Name())
	require.NoError(t, loadErr)

	assert.Equal(t, "git", cfg.Source.Type)
	assert.Equal(t, "/srv/repos/app", cfg.Source.Repository)
	assert.Equal(t, 30*time.Second, cfg.Source.Timeout)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, "skip", cfg.Pipeline.OnError)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "/tmp/revchurn-cache", cfg.Cache.Directory)
	assert.Equal(t, []string{"csv", "json"}, cfg.Output.Formats)
	assert.True(t, cfg.Output.PerRevision)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("REVCHURN_SOURCE_TYPE", "git")
	t.Setenv("REVCHURN_PIPELINE_WORKERS", "2")
	t.Setenv("REVCHURN_CACHE_DIRECTORY", "/tmp/env-cache")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "git", cfg.Source.Type)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, "/tmp/env-cache", cfg.Cache.Directory)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base := func() *config.Config {
		cfg, err := config.Load("")
		require.NoError(t, err)

		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
	}{
		{
			name:    "unknown source type",
			mutate:  func(c *config.Config) { c.Source.Type = "cvs" },
			wantErr: config.ErrInvalidSourceType,
		},
		{
			name:    "negative timeout",
			mutate:  func(c *config.Config) { c.Source.Timeout = -time.Second },
			wantErr: config.ErrInvalidTimeout,
		},
		{
			name:    "zero workers",
			mutate:  func(c *config.Config) { c.Pipeline.Workers = 0 },
			wantErr: config.ErrInvalidWorkers,
		},
		{
			name:    "unknown on_error",
			mutate:  func(c *config.Config) { c.Pipeline.OnError = "retry" },
			wantErr: config.ErrInvalidOnError,
		},
		{
			name:    "unknown log level",
			mutate:  func(c *config.Config) { c.Logging.Level = "trace" },
			wantErr: config.ErrInvalidLogLevel,
		},
		{
			name:    "unknown log format",
			mutate:  func(c *config.Config) { c.Logging.Format = "logfmt" },
			wantErr: config.ErrInvalidLogFormat,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := base()
			tc.mutate(cfg)

			err := cfg.Validate()
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()

	tmpFile, err := os.CreateTemp(tmpDir, "test-config-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString("pipeline:\n  workers: -1\n")
	require.NoError(t, writeErr)

	tmpFile.Close()

	_, loadErr := config.Load(tmpFile.Name())
	require.ErrorIs(t, loadErr, config.ErrInvalidWorkers)
}
