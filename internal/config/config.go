// Package config loads service settings: built-in defaults, then a YAML file,
// then a .env file, then the process environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/azzil/mensalidades/be/pkg/common/period"
)

type ctxKey string

const configContextKey ctxKey = "mensalidades.config"

const (
	DefaultConfigFile = "mensalidades.yaml"
	DefaultEnvFile    = ".env"
)

type Reminder struct {
	Header    string `yaml:"header"    envconfig:"HEADER"`
	Greeting  string `yaml:"greeting"  envconfig:"GREETING"`
	Signature string `yaml:"signature" envconfig:"SIGNATURE"`
}

type Config struct {
	Port           string        `yaml:"port"           envconfig:"PORT"`
	LogLevel       string        `yaml:"logLevel"       envconfig:"LOG_LEVEL"`
	DataDir        string        `yaml:"dataDir"        envconfig:"DATA_DIR"`
	SnapshotPath   string        `yaml:"snapshotPath"   envconfig:"SNAPSHOT_PATH"`
	CachePath      string        `yaml:"cachePath"      envconfig:"CACHE_SQLITE_PATH"`
	EventsPath     string        `yaml:"eventsPath"     envconfig:"EVENTS_SQLITE_PATH"`
	UploadDir      string        `yaml:"uploadDir"      envconfig:"UPLOAD_DIR"`
	RemoteURL      string        `yaml:"remoteUrl"      envconfig:"REMOTE_URL"`
	RemoteTimeout  time.Duration `yaml:"remoteTimeout"  envconfig:"REMOTE_TIMEOUT"`
	ProbeTimeout   time.Duration `yaml:"probeTimeout"   envconfig:"PROBE_TIMEOUT"`
	SaveDelay      time.Duration `yaml:"saveDelay"      envconfig:"SAVE_DELAY"`
	Epoch          string        `yaml:"epoch"          envconfig:"DUES_EPOCH"`
	TimeZone       string        `yaml:"timeZone"       envconfig:"TZ_NAME"`
	InferAmounts   bool          `yaml:"inferAmounts"   envconfig:"INFER_AMOUNTS"`
	PublicBaseURL  string        `yaml:"publicBaseUrl"  envconfig:"PUBLIC_BASE_URL"`
	ConfirmKeyB64  string        `yaml:"confirmKeyB64"  envconfig:"CONFIRM_LINK_KEY_B64"`
	ConfirmKeyID   string        `yaml:"confirmKeyId"   envconfig:"CONFIRM_LINK_KID"`
	ConfirmTTL     time.Duration `yaml:"confirmTtl"     envconfig:"CONFIRM_LINK_TTL"`
	MaxUploadBytes int64         `yaml:"maxUploadBytes" envconfig:"MAX_UPLOAD_BYTES"`
	Reminder       Reminder      `yaml:"reminder"       envconfig:"REMINDER"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Port:           "8080",
		LogLevel:       "info",
		DataDir:        "./data",
		RemoteTimeout:  30 * time.Second,
		ProbeTimeout:   3 * time.Second,
		SaveDelay:      300 * time.Millisecond,
		Epoch:          "2026-01",
		TimeZone:       "America/Sao_Paulo",
		InferAmounts:   true,
		PublicBaseURL:  "http://localhost:8080",
		ConfirmTTL:     30 * 24 * time.Hour,
		MaxUploadBytes: 10 << 20,
	}
}

// Load builds the configuration. An empty configFile falls back to
// DefaultConfigFile when it exists; an explicit one must exist. envFiles
// default to DefaultEnvFile; variables already set in the environment win.
func Load(configFile string, envFiles ...string) (*Config, error) {
	cfg := Default()

	explicit := configFile != ""
	if !explicit {
		configFile = DefaultConfigFile
	}
	buf, err := os.ReadFile(configFile)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", configFile, err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s: %w", f, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	cfg.applyDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDerived() {
	if c.SnapshotPath == "" {
		c.SnapshotPath = filepath.Join(c.DataDir, "db.json")
	}
	if c.CachePath == "" {
		c.CachePath = filepath.Join(c.DataDir, "cache.db")
	}
	if c.EventsPath == "" {
		c.EventsPath = filepath.Join(c.DataDir, "events.db")
	}
	if c.UploadDir == "" {
		c.UploadDir = c.DataDir
	}
	c.RemoteURL = strings.TrimRight(strings.TrimSpace(c.RemoteURL), "/")
	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port must not be empty")
	}
	if _, err := c.EpochPeriod(); err != nil {
		return fmt.Errorf("invalid epoch %q: %w", c.Epoch, err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timeZone %q: %w", c.TimeZone, err)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("maxUploadBytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.SaveDelay < 0 || c.ProbeTimeout < 0 || c.RemoteTimeout < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

func (c *Config) EpochPeriod() (period.Period, error) { return period.Parse(c.Epoch) }

func (c *Config) Location() (*time.Location, error) { return time.LoadLocation(c.TimeZone) }

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}
