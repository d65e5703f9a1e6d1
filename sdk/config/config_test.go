package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arena.hcl")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.URL != "http://localhost:8080" {
		t.Errorf("url = %q", cfg.Server.URL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	path := writeConfig(t, `
server {
  url = "https://arena.example.com"
}
polling {
  hold_seconds = 10
}
logging {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.URL != "https://arena.example.com" {
		t.Errorf("url = %q", cfg.Server.URL)
	}
	if cfg.Server.RetryAttempts != 3 {
		t.Errorf("retry_attempts = %d, want default 3", cfg.Server.RetryAttempts)
	}
	if cfg.Polling.HoldSeconds != 10 {
		t.Errorf("hold_seconds = %d, want 10", cfg.Polling.HoldSeconds)
	}
	if cfg.Polling.TurnDeadlineSeconds != 300 {
		t.Errorf("turn_deadline_seconds = %d, want default 300", cfg.Polling.TurnDeadlineSeconds)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("level = %q, want default info", cfg.Logging.Level)
	}
}

func TestLoadRejectsMalformedHCL(t *testing.T) {
	path := writeConfig(t, `server { url = `)
	if _, err := Load(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"missing url", func(c *Config) { c.Server.URL = "" }, true},
		{"zero retries", func(c *Config) { c.Server.RetryAttempts = 0 }, true},
		{"zero hold", func(c *Config) { c.Polling.HoldSeconds = 0 }, true},
		{"deadline not past hold", func(c *Config) { c.Polling.TurnDeadlineSeconds = c.Polling.HoldSeconds }, true},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvServer, "https://arena.example.com")
	t.Setenv(EnvToken, "secret")
	t.Setenv(EnvAgentID, "agent-7")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.ServerURL != "https://arena.example.com" || cfg.AuthToken != "secret" || cfg.AgentID != "agent-7" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestFromEnvRequiresServer(t *testing.T) {
	t.Setenv(EnvServer, "")
	if _, err := FromEnv(); err == nil {
		t.Error("expected an error when the server URL is unset")
	}
}
