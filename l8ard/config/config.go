// Package config loads processor settings from defaults, an optional YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/go-l8ard/l8ard/model"
	"github.com/example/go-l8ard/l8ard/storage"
)

// Version is the processor version, overridden at link time.
var Version = "0.5.0"

const softwareName = "EWoC L8 Processor"

// Bucket describes one S3 endpoint and bucket.
type Bucket struct {
	Name            string `yaml:"name"`
	Region          string `yaml:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	SessionToken    string `yaml:"session_token,omitempty"`
	UsePathStyle    bool   `yaml:"use_path_style,omitempty"`
	// Anonymous sends unsigned requests instead of using the default credential chain.
	Anonymous bool `yaml:"anonymous,omitempty"`
}

// S3 returns the client settings of the bucket.
func (b Bucket) S3() storage.S3Config {
	return storage.S3Config{
		Region:          b.Region,
		Endpoint:        b.Endpoint,
		AccessKeyID:     b.AccessKeyID,
		SecretAccessKey: b.SecretAccessKey,
		SessionToken:    b.SessionToken,
		UsePathStyle:    b.UsePathStyle,
		Anonymous:       b.Anonymous,
	}
}

// Config holds every processor setting.
type Config struct {
	WorkDir         string        `yaml:"work_dir"`
	ProductionID    string        `yaml:"production_id,omitempty"`
	Source          Bucket        `yaml:"source"`
	Output          Bucket        `yaml:"output"`
	TileDB          string        `yaml:"tile_db,omitempty"`
	TileGeoJSON     string        `yaml:"tile_geojson,omitempty"`
	Concurrency     int           `yaml:"concurrency"`
	PlanConcurrency int           `yaml:"plan_concurrency"`
	StepTimeout     time.Duration `yaml:"step_timeout"`
	StreamSources   bool          `yaml:"stream_sources"`
	GDALBinDir      string        `yaml:"gdal_bin_dir,omitempty"`
	// DockerVersion is the container image version, appended to the software tag.
	DockerVersion string `yaml:"-"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		WorkDir:         os.TempDir(),
		Source:          Bucket{Name: "usgs-landsat", Region: storage.DefaultSourceRegion},
		Output:          Bucket{Name: "ewoc-ard", Region: "eu-central-1"},
		Concurrency:     1,
		PlanConcurrency: 1,
		StepTimeout:     30 * time.Minute,
	}
}

// Load builds the configuration from defaults, the YAML file at path (if any) and
// the process environment.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, model.Configf("config file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, model.Configf("parse %s: %v", path, err)
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString(&c.WorkDir, getenv("L8ARD_WORK_DIR"))
	setString(&c.ProductionID, getenv("L8ARD_PRODUCTION_ID"))
	setString(&c.Output.Name, getenv("L8ARD_BUCKET"))
	setString(&c.Output.Endpoint, getenv("L8ARD_S3_ENDPOINT"))
	setString(&c.TileDB, getenv("L8ARD_TILE_DB"))
	setString(&c.TileGeoJSON, getenv("L8ARD_TILE_GEOJSON"))
	setString(&c.GDALBinDir, getenv("L8ARD_GDAL_BIN_DIR"))
	setString(&c.DockerVersion, getenv("EWOC_L8_DOCKER_VERSION"))
	setString(&c.Output.Region, getenv("AWS_REGION"))

	for _, b := range []*Bucket{&c.Source, &c.Output} {
		setString(&b.AccessKeyID, getenv("AWS_ACCESS_KEY_ID"))
		setString(&b.SecretAccessKey, getenv("AWS_SECRET_ACCESS_KEY"))
		setString(&b.SessionToken, getenv("AWS_SESSION_TOKEN"))
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"L8ARD_CONCURRENCY", &c.Concurrency},
		{"L8ARD_PLAN_CONCURRENCY", &c.PlanConcurrency},
	}
	for _, f := range ints {
		raw := strings.TrimSpace(getenv(f.key))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return model.Configf("%s: %v", f.key, err)
		}
		*f.dst = n
	}
	if raw := strings.TrimSpace(getenv("L8ARD_STEP_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return model.Configf("L8ARD_STEP_TIMEOUT: %v", err)
		}
		c.StepTimeout = d
	}
	if raw := strings.TrimSpace(getenv("L8ARD_STREAM_SOURCES")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return model.Configf("L8ARD_STREAM_SOURCES: %v", err)
		}
		c.StreamSources = b
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// Validate checks the settings for values the processor cannot run with.
func (c Config) Validate() error {
	switch {
	case c.WorkDir == "":
		return model.Configf("work dir must be set")
	case c.Source.Name == "":
		return model.Configf("source bucket must be set")
	case c.Output.Name == "":
		return model.Configf("output bucket must be set")
	case c.Concurrency < 1:
		return model.Configf("concurrency must be at least 1, got %d", c.Concurrency)
	case c.PlanConcurrency < 1:
		return model.Configf("plan concurrency must be at least 1, got %d", c.PlanConcurrency)
	case c.StepTimeout <= 0:
		return model.Configf("step timeout must be positive, got %s", c.StepTimeout)
	}
	return nil
}

// SoftwareVersion returns the TIFFTAG_SOFTWARE value of produced rasters.
func (c Config) SoftwareVersion() string {
	s := softwareName + " " + Version
	if c.DockerVersion != "" {
		s += " / " + c.DockerVersion
	}
	return s
}

// DefaultProductionID returns the production prefix used when none is given.
func DefaultProductionID(now time.Time) string {
	return "0000_000_" + now.Format("20060102T150405")
}
