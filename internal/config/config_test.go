// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, and overrides

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hub.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

auth:
  jwt_secret: "test-secret"

fleet:
  max_agents: 4
  task_queue_limit: 50
  action_log_cap: 20
  status_log_cap: 30
  status_timeout: "3s"
  heartbeat_interval: "1m"

prompter:
  base_url: "https://llm.example.com/v1"
  api_key: "llm-key"
  model: "gpt-4o-mini"

transcribe:
  base_url: "https://stt.example.com/v1"
  api_key: "stt-key"
  model: "whisper-1"
  max_audio_bytes: 1048576

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "test-secret")
	}

	if cfg.Fleet.MaxAgents != 4 {
		t.Errorf("Fleet.MaxAgents = %d, want 4", cfg.Fleet.MaxAgents)
	}
	if cfg.Fleet.TaskQueueLimit != 50 {
		t.Errorf("Fleet.TaskQueueLimit = %d, want 50", cfg.Fleet.TaskQueueLimit)
	}
	if cfg.Fleet.ActionLogCap != 20 {
		t.Errorf("Fleet.ActionLogCap = %d, want 20", cfg.Fleet.ActionLogCap)
	}
	if cfg.Fleet.StatusLogCap != 30 {
		t.Errorf("Fleet.StatusLogCap = %d, want 30", cfg.Fleet.StatusLogCap)
	}
	if cfg.Fleet.StatusTimeout != 3*time.Second {
		t.Errorf("Fleet.StatusTimeout = %v, want %v", cfg.Fleet.StatusTimeout, 3*time.Second)
	}
	if cfg.Fleet.HeartbeatInterval != time.Minute {
		t.Errorf("Fleet.HeartbeatInterval = %v, want %v", cfg.Fleet.HeartbeatInterval, time.Minute)
	}

	if cfg.Prompter.BaseURL != "https://llm.example.com/v1" {
		t.Errorf("Prompter.BaseURL = %q, want %q", cfg.Prompter.BaseURL, "https://llm.example.com/v1")
	}
	if cfg.Prompter.Model != "gpt-4o-mini" {
		t.Errorf("Prompter.Model = %q, want %q", cfg.Prompter.Model, "gpt-4o-mini")
	}

	if cfg.Transcribe.Model != "whisper-1" {
		t.Errorf("Transcribe.Model = %q, want %q", cfg.Transcribe.Model, "whisper-1")
	}
	if cfg.Transcribe.MaxAudioBytes != 1048576 {
		t.Errorf("Transcribe.MaxAudioBytes = %d, want 1048576", cfg.Transcribe.MaxAudioBytes)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "localhost:8080"

database:
  path: "./hub.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Fleet.MaxAgents != DefaultMaxAgents {
		t.Errorf("Fleet.MaxAgents = %d, want %d", cfg.Fleet.MaxAgents, DefaultMaxAgents)
	}
	if cfg.Fleet.TaskQueueLimit != DefaultTaskQueueLimit {
		t.Errorf("Fleet.TaskQueueLimit = %d, want %d", cfg.Fleet.TaskQueueLimit, DefaultTaskQueueLimit)
	}
	if cfg.Fleet.ActionLogCap != DefaultLogCap {
		t.Errorf("Fleet.ActionLogCap = %d, want %d", cfg.Fleet.ActionLogCap, DefaultLogCap)
	}
	if cfg.Fleet.StatusLogCap != DefaultLogCap {
		t.Errorf("Fleet.StatusLogCap = %d, want %d", cfg.Fleet.StatusLogCap, DefaultLogCap)
	}
	if cfg.Fleet.StatusTimeout != DefaultStatusTimeout {
		t.Errorf("Fleet.StatusTimeout = %v, want %v", cfg.Fleet.StatusTimeout, DefaultStatusTimeout)
	}
	if cfg.Fleet.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("Fleet.HeartbeatInterval = %v, want %v", cfg.Fleet.HeartbeatInterval, DefaultHeartbeatInterval)
	}
	if cfg.Transcribe.MaxAudioBytes != DefaultMaxAudioBytes {
		t.Errorf("Transcribe.MaxAudioBytes = %d, want %d", cfg.Transcribe.MaxAudioBytes, DefaultMaxAudioBytes)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_HUB_SECRET", "secret-from-env")
	t.Setenv("TEST_LLM_KEY", "llm-from-env")

	configPath := writeConfig(t, `
server:
  http_addr: "localhost:8080"

database:
  path: "./hub.db"

auth:
  jwt_secret: "${TEST_HUB_SECRET}"

prompter:
  api_key: "${TEST_LLM_KEY}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.JWTSecret != "secret-from-env" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "secret-from-env")
	}
	if cfg.Prompter.APIKey != "llm-from-env" {
		t.Errorf("Prompter.APIKey = %q, want %q", cfg.Prompter.APIKey, "llm-from-env")
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "localhost:8080"

database:
  path: "./hub.db"

auth:
  jwt_secret: "${DEFINITELY_NOT_SET_VAR_12345}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Unset variables expand to empty, leaving auth disabled.
	if cfg.Auth.JWTSecret != "" {
		t.Errorf("Auth.JWTSecret = %q, want empty", cfg.Auth.JWTSecret)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FLEET_HUB_ADDR", "0.0.0.0:9999")
	t.Setenv("FLEET_HUB_DB_PATH", "/tmp/override.db")
	t.Setenv("FLEET_HUB_JWT_SECRET", "override-secret")
	t.Setenv("OPENAI_API_KEY", "openai-from-env")

	configPath := writeConfig(t, `
server:
  http_addr: "localhost:8080"

database:
  path: "./hub.db"

auth:
  jwt_secret: "file-secret"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:9999" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:9999")
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/override.db")
	}
	if cfg.Auth.JWTSecret != "override-secret" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "override-secret")
	}
	// The prompter key from the environment only fills an empty field.
	if cfg.Prompter.APIKey != "openai-from-env" {
		t.Errorf("Prompter.APIKey = %q, want %q", cfg.Prompter.APIKey, "openai-from-env")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/hub.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: [not, a, string
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "localhost:8080"

database:
  path: "./hub.db"

fleet:
  status_timeout: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "status_timeout") {
		t.Errorf("error = %v, want mention of status_timeout", err)
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing http_addr",
			content: `
database:
  path: "./hub.db"
`,
			wantErr: "http_addr",
		},
		{
			name: "missing database path",
			content: `
server:
  http_addr: "localhost:8080"
`,
			wantErr: "database.path",
		},
		{
			name: "negative max_agents",
			content: `
server:
  http_addr: "localhost:8080"

database:
  path: "./hub.db"

fleet:
  max_agents: -1
`,
			wantErr: "max_agents",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, tt.content)
			_, err := Load(configPath)
			if err == nil {
				t.Fatal("Load() expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("BAZ", "qux")

	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"${FOO}", "bar"},
		{"prefix-${FOO}-suffix", "prefix-bar-suffix"},
		{"${FOO}${BAZ}", "barqux"},
		{"${NOT_SET_AT_ALL_12345}", ""},
		{"$FOO", "$FOO"}, // only braced form expands
	}

	for _, tt := range tests {
		if got := expandEnvVars(tt.in); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
