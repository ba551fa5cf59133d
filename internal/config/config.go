// Package config loads go-voiceauth settings from defaults, an optional YAML
// file, an optional .env file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables.
const (
	EnvAPIURL           = "VOICEAUTH_API_URL"
	EnvTimeout          = "VOICEAUTH_TIMEOUT"
	EnvMaxRecordSeconds = "VOICEAUTH_MAX_RECORD_SECONDS"
	EnvAudioBackend     = "VOICEAUTH_AUDIO_BACKEND"
	EnvAudioDevice      = "VOICEAUTH_AUDIO_DEVICE"
	EnvRecordingsDir    = "VOICEAUTH_RECORDINGS_DIR"
	EnvLogLevel         = "VOICEAUTH_LOG_LEVEL"
	EnvDashboardAddr    = "VOICEAUTH_DASHBOARD_ADDR"
)

// Defaults.
const (
	DefaultAPIURL           = "http://localhost:8000"
	DefaultTimeout          = 30 * time.Second
	DefaultMaxRecordSeconds = 10
	DefaultAudioBackend     = "auto"
	DefaultLogLevel         = "info"
	DefaultDashboardAddr    = "127.0.0.1:8080"
	DefaultEnvFile          = ".env"
)

// Config holds process-wide settings. Values are fixed once loaded.
type Config struct {
	APIBaseURL       string        `yaml:"api_url"`
	Timeout          time.Duration `yaml:"-"`
	MaxRecordSeconds int           `yaml:"max_record_seconds"`
	AudioBackend     string        `yaml:"audio_backend"`
	AudioDevice      string        `yaml:"audio_device"`
	RecordingsDir    string        `yaml:"recordings_dir"`
	LogLevel         string        `yaml:"log_level"`
	DashboardAddr    string        `yaml:"dashboard_addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIBaseURL:       DefaultAPIURL,
		Timeout:          DefaultTimeout,
		MaxRecordSeconds: DefaultMaxRecordSeconds,
		AudioBackend:     DefaultAudioBackend,
		RecordingsDir:    filepath.Join(os.TempDir(), "voiceauth-recordings"),
		LogLevel:         DefaultLogLevel,
		DashboardAddr:    DefaultDashboardAddr,
	}
}

// Sources names where Load reads from.
type Sources struct {
	// File is a YAML config file. Empty skips it.
	File string

	// EnvFile is a dotenv file. Empty tries DefaultEnvFile and ignores it
	// when absent; an explicit path must exist.
	EnvFile string

	// LookupEnv reads the process environment. Nil uses os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load builds the configuration from src and validates it.
func Load(src Sources) (*Config, error) {
	cfg := Default()

	if src.File != "" {
		if err := cfg.loadYAML(src.File); err != nil {
			return nil, err
		}
	}

	dotenv, err := readEnvFile(src.EnvFile)
	if err != nil {
		return nil, err
	}

	lookup := src.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	// Process environment wins over the dotenv file.
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	// timeout takes the same forms as the environment variable.
	var raw struct {
		Timeout yaml.Node `yaml:"timeout"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if raw.Timeout.Kind == yaml.ScalarNode {
		d, err := ParseTimeout(raw.Timeout.Value)
		if err != nil {
			return fmt.Errorf("parse config %s: timeout: %w", path, err)
		}
		c.Timeout = d
	}
	return nil
}

func readEnvFile(path string) (map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	vals, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return vals, nil
}

func (c *Config) applyEnv(env func(string) (string, bool)) error {
	if v, ok := env(EnvAPIURL); ok {
		c.APIBaseURL = v
	}
	if v, ok := env(EnvTimeout); ok {
		d, err := ParseTimeout(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	if v, ok := env(EnvMaxRecordSeconds); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxRecordSeconds, err)
		}
		c.MaxRecordSeconds = n
	}
	if v, ok := env(EnvAudioBackend); ok {
		c.AudioBackend = v
	}
	if v, ok := env(EnvAudioDevice); ok {
		c.AudioDevice = v
	}
	if v, ok := env(EnvRecordingsDir); ok {
		c.RecordingsDir = v
	}
	if v, ok := env(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := env(EnvDashboardAddr); ok {
		c.DashboardAddr = v
	}
	return nil
}

// ParseTimeout accepts a Go duration ("30s") or a bare millisecond count
// ("30000").
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_url must be an absolute http(s) URL, got %q", c.APIBaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxRecordSeconds < 1 || c.MaxRecordSeconds > 3600 {
		return fmt.Errorf("max_record_seconds must be in [1, 3600], got %d", c.MaxRecordSeconds)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.RecordingsDir == "" {
		return fmt.Errorf("recordings_dir required")
	}
	return nil
}
