package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/go-l8ard/l8ard/model"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithEnv("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, "usgs-landsat", cfg.Source.Name)
	assert.Equal(t, "us-west-2", cfg.Source.Region)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, 30*time.Minute, cfg.StepTimeout)
	assert.Equal(t, "EWoC L8 Processor "+Version, cfg.SoftwareVersion())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l8ard.yaml")
	data := `
work_dir: /data/work
output:
  name: my-ard
  endpoint: https://s3.example.org
  use_path_style: true
concurrency: 4
step_timeout: 5m
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadWithEnv(path, env(map[string]string{
		"L8ARD_CONCURRENCY":      "2",
		"L8ARD_STREAM_SOURCES":   "true",
		"EWOC_L8_DOCKER_VERSION": "1.2.3",
		"AWS_ACCESS_KEY_ID":      "AKIA",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/data/work", cfg.WorkDir)
	assert.Equal(t, "my-ard", cfg.Output.Name)
	assert.True(t, cfg.Output.UsePathStyle)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.StepTimeout)
	assert.True(t, cfg.StreamSources)
	assert.Equal(t, "AKIA", cfg.Source.AccessKeyID)
	assert.Equal(t, "AKIA", cfg.Output.S3().AccessKeyID)
	assert.Equal(t, "https://s3.example.org", cfg.Output.S3().Endpoint)
	assert.Equal(t, "EWoC L8 Processor "+Version+" / 1.2.3", cfg.SoftwareVersion())
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
	assert.ErrorIs(t, err, model.ErrConfiguration)

	_, err = LoadWithEnv("", env(map[string]string{"L8ARD_CONCURRENCY": "many"}))
	assert.ErrorIs(t, err, model.ErrConfiguration)

	_, err = LoadWithEnv("", env(map[string]string{"L8ARD_CONCURRENCY": "0"}))
	assert.ErrorIs(t, err, model.ErrConfiguration)

	_, err = LoadWithEnv("", env(map[string]string{"L8ARD_STEP_TIMEOUT": "soon"}))
	assert.ErrorIs(t, err, model.ErrConfiguration)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("concurrency: [1"), 0o644))
	_, err = LoadWithEnv(bad, env(nil))
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestDefaultProductionID(t *testing.T) {
	now := time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Equal(t, "0000_000_20220304T050607", DefaultProductionID(now))
}
