// Package config loads and watches the scoresws YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/osukit/scoresws/format"
)

const (
	defaultListen        = ":7727"
	defaultScoresURL     = "https://osu.ppy.sh/api/v2/scores"
	defaultTokenURL      = "https://osu.ppy.sh/oauth/token"
	defaultIntervalMs    = 1000
	defaultRetentionMin  = 30
	defaultSnapshotPath  = "./scores.snapshot"
	defaultSnapshotCodec = "zstd"
	defaultDebounceMs    = 300
)

type Config struct {
	Server struct {
		Listen         string `yaml:"listen"`
		ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
		WriteTimeoutMs int    `yaml:"write_timeout_ms"`
	} `yaml:"server"`

	API struct {
		ScoresURL    string `yaml:"scores_url"`
		TokenURL     string `yaml:"token_url"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		// IntervalMs is the poll interval against the scores endpoint.
		IntervalMs int `yaml:"interval_ms"`
	} `yaml:"api"`

	History struct {
		// RetentionMin is how long a score stays replayable, in minutes.
		RetentionMin int `yaml:"retention_min"`
		Snapshot     struct {
			Path string `yaml:"path"`
			// Codec is one of "none", "zstd", "s2", "lz4".
			Codec string `yaml:"codec"`
		} `yaml:"snapshot"`
	} `yaml:"history"`

	// Reload watches the config file and applies runtime-adjustable
	// settings (log level, poll interval) without a restart.
	Reload struct {
		Enabled    bool `yaml:"enabled"`
		DebounceMs int  `yaml:"debounce_ms"`
	} `yaml:"reload"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Interval returns the poll interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.API.IntervalMs) * time.Millisecond
}

// Retention returns the history retention window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.History.RetentionMin) * time.Minute
}

// SnapshotCodec returns the parsed snapshot compression type.
func (c *Config) SnapshotCodec() format.CompressionType {
	typ, _ := format.ParseCompressionType(c.History.Snapshot.Codec)
	return typ
}

// Load reads, defaults, env-overrides and validates the config at path.
func Load(path string) (*Config, error) {
	// #nosec G304 -- path is provided by trusted config/flag.
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = defaultListen
	}
	if cfg.Server.ReadTimeoutMs <= 0 {
		cfg.Server.ReadTimeoutMs = 60000
	}
	if cfg.Server.WriteTimeoutMs <= 0 {
		cfg.Server.WriteTimeoutMs = 60000
	}
	if strings.TrimSpace(cfg.API.ScoresURL) == "" {
		cfg.API.ScoresURL = defaultScoresURL
	}
	if strings.TrimSpace(cfg.API.TokenURL) == "" {
		cfg.API.TokenURL = defaultTokenURL
	}
	if cfg.API.IntervalMs <= 0 {
		cfg.API.IntervalMs = defaultIntervalMs
	}
	if cfg.History.RetentionMin <= 0 {
		cfg.History.RetentionMin = defaultRetentionMin
	}
	if strings.TrimSpace(cfg.History.Snapshot.Path) == "" {
		cfg.History.Snapshot.Path = defaultSnapshotPath
	}
	if strings.TrimSpace(cfg.History.Snapshot.Codec) == "" {
		cfg.History.Snapshot.Codec = defaultSnapshotCodec
	}
	if cfg.Reload.DebounceMs <= 0 {
		cfg.Reload.DebounceMs = defaultDebounceMs
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("SWS_LISTEN")); v != "" {
		cfg.Server.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("SWS_SCORES_URL")); v != "" {
		cfg.API.ScoresURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SWS_TOKEN_URL")); v != "" {
		cfg.API.TokenURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SWS_CLIENT_ID")); v != "" {
		cfg.API.ClientID = v
	}
	if v := strings.TrimSpace(os.Getenv("SWS_CLIENT_SECRET")); v != "" {
		cfg.API.ClientSecret = v
	}
	if n, ok := envInt("SWS_INTERVAL_MS"); ok && n > 0 {
		cfg.API.IntervalMs = n
	}
	if n, ok := envInt("SWS_RETENTION_MIN"); ok && n > 0 {
		cfg.History.RetentionMin = n
	}
	if v := strings.TrimSpace(os.Getenv("SWS_SNAPSHOT_PATH")); v != "" {
		cfg.History.Snapshot.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("SWS_SNAPSHOT_CODEC")); v != "" {
		cfg.History.Snapshot.Codec = v
	}
	if v := strings.TrimSpace(os.Getenv("SWS_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
}

func envInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.API.ClientID) == "" {
		return errors.New("api.client_id is required")
	}
	if strings.TrimSpace(cfg.API.ClientSecret) == "" {
		return errors.New("api.client_secret is required")
	}
	if !strings.Contains(cfg.API.ScoresURL, "://") {
		return fmt.Errorf("api.scores_url must be a URL, got %q", cfg.API.ScoresURL)
	}
	if !strings.Contains(cfg.API.TokenURL, "://") {
		return fmt.Errorf("api.token_url must be a URL, got %q", cfg.API.TokenURL)
	}
	if _, err := format.ParseCompressionType(cfg.History.Snapshot.Codec); err != nil {
		return fmt.Errorf("history.snapshot.codec: %w", err)
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Reload.Enabled && cfg.Reload.DebounceMs <= 0 {
		return errors.New("reload.debounce_ms must be > 0 when reload.enabled=true")
	}
	return nil
}
