// Package config loads the hubcheck configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvAPIKey    = "HUBCHECK_API_KEY"
	EnvAPISecret = "HUBCHECK_API_SECRET"
	EnvCacheDSN  = "HUBCHECK_CACHE_DSN"
	EnvLogLevel  = "HUBCHECK_LOG_LEVEL"
)

// HubConfig holds the hub endpoint and developer credentials.
type HubConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	APISecret     string `yaml:"api_secret"`
	DBPath        string `yaml:"db_path"`
	GatewaySuffix string `yaml:"gateway_suffix"`
}

// CacheConfig selects the persistent cache.
type CacheConfig struct {
	DSN     string `yaml:"dsn"`
	Version int    `yaml:"version"`
}

// WorkflowConfig tunes the provisioning run.
type WorkflowConfig struct {
	Pacing       time.Duration `yaml:"pacing"`
	SignatureTTL time.Duration `yaml:"signature_ttl"`
	BucketName   string        `yaml:"bucket_name"`
	FilePath     string        `yaml:"file_path"`
	FileContent  string        `yaml:"file_content"`
}

// LogConfig holds the logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config holds the complete configuration.
type Config struct {
	Hub      HubConfig      `yaml:"hub"`
	Cache    CacheConfig    `yaml:"cache"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Hub: HubConfig{
			Endpoint: "local://hub",
			DBPath:   "hubcheck-hub.db",
		},
		Cache: CacheConfig{
			DSN:     "sqlite://hubcheck-cache.db",
			Version: 1,
		},
		Workflow: WorkflowConfig{
			Pacing:       500 * time.Millisecond,
			SignatureTTL: 30 * time.Minute,
			BucketName:   "files",
			FilePath:     "index.html",
			FileContent:  "hello world",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path on top of Default and applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		if err := decode(file, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides settings from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIKey); ok {
		c.Hub.APIKey = v
	}
	if v, ok := lookup(EnvAPISecret); ok {
		c.Hub.APISecret = v
	}
	if v, ok := lookup(EnvCacheDSN); ok {
		c.Cache.DSN = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.Log.Level = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Hub.APIKey == "" {
		errs = append(errs, fmt.Errorf("hub.api_key is required (or set %s)", EnvAPIKey))
	}
	if c.Hub.APISecret == "" {
		errs = append(errs, fmt.Errorf("hub.api_secret is required (or set %s)", EnvAPISecret))
	}
	if c.Cache.DSN == "" {
		errs = append(errs, errors.New("cache.dsn is required"))
	}
	if c.Cache.Version < 1 {
		errs = append(errs, errors.New("cache.version must be at least 1"))
	}
	if c.Workflow.Pacing < 0 {
		errs = append(errs, errors.New("workflow.pacing must not be negative"))
	}
	if c.Workflow.SignatureTTL <= 0 {
		errs = append(errs, errors.New("workflow.signature_ttl must be positive"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}
	return errors.Join(errs...)
}
