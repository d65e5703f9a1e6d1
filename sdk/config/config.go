// Package config provides configuration loading for arena SDK clients: an
// HCL file for interactive use and environment variables for embedding.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete client configuration.
type Config struct {
	Server  ServerSettings  `hcl:"server,block"`
	Polling PollingSettings `hcl:"polling,block"`
	Logging LoggingSettings `hcl:"logging,block"`
}

// ServerSettings contains connection settings for the arena API.
type ServerSettings struct {
	URL           string `hcl:"url"`
	AuthToken     string `hcl:"auth_token,optional"`
	RetryAttempts int    `hcl:"retry_attempts,optional"`
	RetryDelayMS  int    `hcl:"retry_delay_ms,optional"`
}

// PollingSettings contains long-poll and turn submission timing.
type PollingSettings struct {
	HoldSeconds         int `hcl:"hold_seconds,optional"`
	TurnDeadlineSeconds int `hcl:"turn_deadline_seconds,optional"`
}

// LoggingSettings contains log output settings.
type LoggingSettings struct {
	Level string `hcl:"level,optional"`
}

// Default returns the default client configuration.
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			URL:           "http://localhost:8080",
			RetryAttempts: 3,
			RetryDelayMS:  500,
		},
		Polling: PollingSettings{
			HoldSeconds:         25,
			TurnDeadlineSeconds: 300,
		},
		Logging: LoggingSettings{
			Level: "info",
		},
	}
}

// Load reads configuration from an HCL file, falling back to defaults for a
// missing file and for any omitted values.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := Default()
	if cfg.Server.URL == "" {
		cfg.Server.URL = defaults.Server.URL
	}
	if cfg.Server.RetryAttempts == 0 {
		cfg.Server.RetryAttempts = defaults.Server.RetryAttempts
	}
	if cfg.Server.RetryDelayMS == 0 {
		cfg.Server.RetryDelayMS = defaults.Server.RetryDelayMS
	}
	if cfg.Polling.HoldSeconds == 0 {
		cfg.Polling.HoldSeconds = defaults.Polling.HoldSeconds
	}
	if cfg.Polling.TurnDeadlineSeconds == 0 {
		cfg.Polling.TurnDeadlineSeconds = defaults.Polling.TurnDeadlineSeconds
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}

	return &cfg, nil
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server URL is required")
	}
	if c.Server.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1")
	}
	if c.Polling.HoldSeconds <= 0 {
		return fmt.Errorf("poll hold must be positive")
	}
	if c.Polling.TurnDeadlineSeconds <= c.Polling.HoldSeconds {
		return fmt.Errorf("turn deadline must exceed the poll hold")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// Environment variable names used when embedding the SDK.
const (
	// EnvServer specifies the base URL for the arena API
	EnvServer = "ARENA_SERVER"

	// EnvToken provides the auth token
	EnvToken = "ARENA_TOKEN"

	// EnvAgentID provides the default agent identifier
	EnvAgentID = "ARENA_AGENT_ID"
)

// EnvConfig holds configuration parsed from environment variables.
type EnvConfig struct {
	ServerURL string
	AuthToken string
	AgentID   string
}

// FromEnv parses configuration from environment variables. Returns an error
// if required variables are missing.
func FromEnv() (*EnvConfig, error) {
	cfg := &EnvConfig{
		ServerURL: os.Getenv(EnvServer),
		AuthToken: os.Getenv(EnvToken),
		AgentID:   os.Getenv(EnvAgentID),
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("%s environment variable is required", EnvServer)
	}
	return cfg, nil
}
