// Package config handles configuration loading for fleet-hub.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion, duration parsing, defaults, and a small set of environment
// overrides applied last.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from FLEET_HUB_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/fleet-hub/hub.yaml
//  3. ~/.config/fleet-hub/hub.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${FLEET_HUB_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Configuration Sections
//
// Server and storage:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # API, dashboard, and websocket channel
//
//	database:
//	  path: "/var/lib/fleet-hub/hub.db"
//
// Fleet limits and timing:
//
//	fleet:
//	  max_agents: 10
//	  task_queue_limit: 100
//	  action_log_cap: 100
//	  status_log_cap: 100
//	  status_timeout: "5s"
//	  heartbeat_interval: "30s"
//
// External model providers:
//
//	prompter:
//	  base_url: "https://api.openai.com/v1"
//	  api_key: "${OPENAI_API_KEY}"
//	  model: "gpt-4o-mini"
//
//	transcribe:
//	  base_url: "https://api.openai.com/v1"
//	  api_key: "${OPENAI_API_KEY}"
//	  model: "whisper-1"
//	  max_audio_bytes: 10485760
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Environment Overrides
//
// A handful of variables win over the file for per-deployment tweaks:
// FLEET_HUB_ADDR, FLEET_HUB_DB_PATH, FLEET_HUB_JWT_SECRET. OPENAI_API_KEY
// and TRANSCRIBE_API_KEY only fill in keys the file leaves empty.
package config
