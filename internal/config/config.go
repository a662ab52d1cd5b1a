// ABOUTME: Configuration loading and parsing for fleet-hub
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the complete fleet-hub configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Fleet      FleetConfig      `yaml:"fleet"`
	Prompter   PrompterConfig   `yaml:"prompter"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds the listen address for the combined HTTP/WebSocket server.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds cloud-table storage configuration.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// FleetConfig holds agent fleet limits and timing configuration.
type FleetConfig struct {
	MaxAgents      int `yaml:"max_agents"`
	TaskQueueLimit int `yaml:"task_queue_limit"`
	ActionLogCap   int `yaml:"action_log_cap"`
	StatusLogCap   int `yaml:"status_log_cap"`

	StatusTimeout     time.Duration `yaml:"-"`
	HeartbeatInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	StatusTimeoutRaw     string `yaml:"status_timeout"`
	HeartbeatIntervalRaw string `yaml:"heartbeat_interval"`
}

// PrompterConfig holds settings for the external monitor-query model.
type PrompterConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// TranscribeConfig holds settings for the external speech-to-text provider.
type TranscribeConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	MaxAudioBytes int64  `yaml:"max_audio_bytes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// envOverrides are applied on top of the file configuration, mirroring the
// knobs operators most often need to change per deployment.
type envOverrides struct {
	HTTPAddr      string `env:"FLEET_HUB_ADDR"`
	DBPath        string `env:"FLEET_HUB_DB_PATH"`
	JWTSecret     string `env:"FLEET_HUB_JWT_SECRET"`
	PrompterKey   string `env:"OPENAI_API_KEY"`
	TranscribeKey string `env:"TRANSCRIBE_API_KEY"`
}

// Defaults applied when the file leaves a field unset.
const (
	DefaultMaxAgents         = 10
	DefaultTaskQueueLimit    = 100
	DefaultLogCap            = 100
	DefaultStatusTimeout     = 5 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultMaxAudioBytes     = 10 << 20 // 10 MiB
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded, duration strings
// are parsed, defaults are filled in, and env overrides are applied last.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment
// variable values. Unset variables are replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnvOverrides lets a handful of environment variables win over the file.
func applyEnvOverrides(cfg *Config) error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return err
	}

	if ov.HTTPAddr != "" {
		cfg.Server.HTTPAddr = ov.HTTPAddr
	}
	if ov.DBPath != "" {
		cfg.Database.Path = ov.DBPath
	}
	if ov.JWTSecret != "" {
		cfg.Auth.JWTSecret = ov.JWTSecret
	}
	if ov.PrompterKey != "" && cfg.Prompter.APIKey == "" {
		cfg.Prompter.APIKey = ov.PrompterKey
	}
	if ov.TranscribeKey != "" && cfg.Transcribe.APIKey == "" {
		cfg.Transcribe.APIKey = ov.TranscribeKey
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Fleet.MaxAgents == 0 {
		c.Fleet.MaxAgents = DefaultMaxAgents
	}
	if c.Fleet.TaskQueueLimit == 0 {
		c.Fleet.TaskQueueLimit = DefaultTaskQueueLimit
	}
	if c.Fleet.ActionLogCap == 0 {
		c.Fleet.ActionLogCap = DefaultLogCap
	}
	if c.Fleet.StatusLogCap == 0 {
		c.Fleet.StatusLogCap = DefaultLogCap
	}
	if c.Fleet.StatusTimeout == 0 {
		c.Fleet.StatusTimeout = DefaultStatusTimeout
	}
	if c.Fleet.HeartbeatInterval == 0 {
		c.Fleet.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Transcribe.MaxAudioBytes == 0 {
		c.Transcribe.MaxAudioBytes = DefaultMaxAudioBytes
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Fleet.MaxAgents < 0 {
		return fmt.Errorf("fleet.max_agents must not be negative")
	}
	if c.Fleet.TaskQueueLimit < 0 {
		return fmt.Errorf("fleet.task_queue_limit must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Fleet.StatusTimeoutRaw != "" {
		cfg.Fleet.StatusTimeout, err = time.ParseDuration(cfg.Fleet.StatusTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing status_timeout %q: %w", cfg.Fleet.StatusTimeoutRaw, err)
		}
	}

	if cfg.Fleet.HeartbeatIntervalRaw != "" {
		cfg.Fleet.HeartbeatInterval, err = time.ParseDuration(cfg.Fleet.HeartbeatIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing heartbeat_interval %q: %w", cfg.Fleet.HeartbeatIntervalRaw, err)
		}
	}

	return nil
}
