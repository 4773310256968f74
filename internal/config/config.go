package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	defaultListen           = ":8080"
	defaultInternalPrefix   = "/_spaproxy"
	defaultWorkers          = 4
	defaultManifestFileName = ".spaship"
	defaultIndexFileName    = "index.html"
	defaultDescFileName     = "description.md"
	defaultDrainTimeoutSec  = 10
	defaultDebounceMs       = 500

	envListen   = "SPAPROXY_LISTEN"
	envWorkDir  = "SPAPROXY_WORK_DIR"
	envRedisURL = "SPAPROXY_REDIS_URL"
	envLogLevel = "SPAPROXY_LOG_LEVEL"
)

type ScannerConfig struct {
	WorkDir          string `yaml:"work_dir"`
	Workers          int    `yaml:"workers"`
	ManifestFileName string `yaml:"manifest_filename"`
	IndexFileName    string `yaml:"index_filename"`
	DescFileName     string `yaml:"desc_filename"`
}

type ServerConfig struct {
	Listen          string `yaml:"listen"`
	InternalPrefix  string `yaml:"internal_prefix"`
	DrainTimeoutSec int    `yaml:"drain_timeout_sec"`
}

func (s *ServerConfig) DrainTimeout() time.Duration {
	return time.Duration(s.DrainTimeoutSec) * time.Second
}

type WatchConfig struct {
	Disabled   bool `yaml:"disabled"`
	DebounceMs int  `yaml:"debounce_ms"`
}

func (w *WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

type Config struct {
	LogLevel      string        `yaml:"log_level"`
	RedisURL      string        `yaml:"redis_url"`
	ServerConfig  ServerConfig  `yaml:"server"`
	ScannerConfig ScannerConfig `yaml:"scanner"`
	WatchConfig   WatchConfig   `yaml:"watch"`
}

func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = LogLevelInfo
	}
	if c.ServerConfig.Listen == "" {
		c.ServerConfig.Listen = defaultListen
	}
	if c.ServerConfig.InternalPrefix == "" {
		c.ServerConfig.InternalPrefix = defaultInternalPrefix
	}
	if c.ServerConfig.DrainTimeoutSec < 1 {
		c.ServerConfig.DrainTimeoutSec = defaultDrainTimeoutSec
	}
	if c.ScannerConfig.Workers < 1 {
		c.ScannerConfig.Workers = defaultWorkers
	}
	if c.ScannerConfig.ManifestFileName == "" {
		c.ScannerConfig.ManifestFileName = defaultManifestFileName
	}
	if c.ScannerConfig.IndexFileName == "" {
		c.ScannerConfig.IndexFileName = defaultIndexFileName
	}
	if c.ScannerConfig.DescFileName == "" {
		c.ScannerConfig.DescFileName = defaultDescFileName
	}
	if c.WatchConfig.DebounceMs < 1 {
		c.WatchConfig.DebounceMs = defaultDebounceMs
	}
}

// Load reads the yaml config file, applies defaults and environment
// overrides. Environment values win over the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file: %w", err)
		}
	}

	if v := os.Getenv(envListen); v != "" {
		cfg.ServerConfig.Listen = v
	}
	if v := os.Getenv(envWorkDir); v != "" {
		cfg.ScannerConfig.WorkDir = v
	}
	if v := os.Getenv(envRedisURL); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = v
	}

	cfg.SetDefaults()

	if cfg.ScannerConfig.WorkDir == "" {
		return nil, fmt.Errorf("work_dir must be set")
	}

	return &cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}
