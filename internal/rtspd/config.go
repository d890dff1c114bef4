package rtspd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration, loaded from a YAML file
// the way the teacher's internal/sol/config.go loads its RTMP config.
type Config struct {
	RTSP    RTSPConfig        `yaml:"rtsp"`
	Logging LoggingConfig     `yaml:"logging"`
	Limits  LimitsConfig      `yaml:"limits"`
	Media   []MediaItemConfig `yaml:"media"`
}

// RTSPConfig holds the listener settings for the RTSP service.
type RTSPConfig struct {
	Port                      int `yaml:"port"`
	ReadInactivityTimeoutSecs int `yaml:"read_inactivity_timeout_seconds"`
}

// LoggingConfig selects the slog level the console handler runs at.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LimitsConfig bounds per-connection resource consumption (design §7).
type LimitsConfig struct {
	MaxBodyBytes           int `yaml:"max_body_bytes"`
	MaxInterleavedPayload  int `yaml:"max_interleaved_payload"`
	OutboundChannelBacklog int `yaml:"outbound_channel_backlog"`
}

// MediaKindDemo is the only media source kind this build can serve: a
// synthetic RTP/RTCP generator. Builds that pull a real upstream would
// add their kinds here.
const MediaKindDemo = "demo"

// MediaItemConfig declares one presentation to publish at startup.
type MediaItemConfig struct {
	Path string `yaml:"path"`
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

// LoadConfig reads and validates configs/default.yaml relative to the
// working directory.
func LoadConfig() (*Config, error) {
	configPath := filepath.Join("configs", "default.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.RTSP.Port <= 0 || c.RTSP.Port > 65535 {
		return fmt.Errorf("invalid rtsp port: %d (must be between 1-65535)", c.RTSP.Port)
	}
	if c.RTSP.ReadInactivityTimeoutSecs < 0 {
		return fmt.Errorf("invalid read_inactivity_timeout_seconds: %d (must be non-negative)", c.RTSP.ReadInactivityTimeoutSecs)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, level := range validLevels {
		if strings.ToLower(c.Logging.Level) == level {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("invalid log level: %s (must be one of: %v)", c.Logging.Level, validLevels)
	}

	if c.Limits.MaxBodyBytes < 0 {
		return fmt.Errorf("invalid max_body_bytes: %d (must be non-negative)", c.Limits.MaxBodyBytes)
	}
	if c.Limits.MaxInterleavedPayload < 0 || c.Limits.MaxInterleavedPayload > 65535 {
		return fmt.Errorf("invalid max_interleaved_payload: %d (must be 0-65535)", c.Limits.MaxInterleavedPayload)
	}
	if c.Limits.OutboundChannelBacklog < 0 {
		return fmt.Errorf("invalid outbound_channel_backlog: %d (must be non-negative)", c.Limits.OutboundChannelBacklog)
	}

	paths := make(map[string]bool)
	for i, item := range c.Media {
		if item.Path == "" || !strings.HasPrefix(item.Path, "/") {
			return fmt.Errorf("invalid media[%d] path: %q (must start with /)", i, item.Path)
		}
		if paths[item.Path] {
			return fmt.Errorf("duplicate media path: %q", item.Path)
		}
		paths[item.Path] = true
		if kind := item.Kind; kind != "" && kind != MediaKindDemo {
			return fmt.Errorf("invalid media[%d] kind: %q (must be %q)", i, kind, MediaKindDemo)
		}
	}

	return nil
}

// ReadTimeout returns the configured read-inactivity timeout, or zero
// (meaning disabled) when unset.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.RTSP.ReadInactivityTimeoutSecs) * time.Second
}

// GetSlogLevel returns the slog.Level the Logging.Level string names.
func (c *Config) GetSlogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
