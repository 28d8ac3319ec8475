// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()

	if cfg.Platform.URL != "http://127.0.0.1:54321" {
		t.Errorf("Platform.URL = %q, want http://127.0.0.1:54321", cfg.Platform.URL)
	}
	if cfg.Breaker.MaxRequests != 3 {
		t.Errorf("Breaker.MaxRequests = %d, want 3", cfg.Breaker.MaxRequests)
	}
	if cfg.Breaker.FailureThreshold != 5 {
		t.Errorf("Breaker.FailureThreshold = %d, want 5", cfg.Breaker.FailureThreshold)
	}
	if cfg.Realtime.EventBuffer != 256 {
		t.Errorf("Realtime.EventBuffer = %d, want 256", cfg.Realtime.EventBuffer)
	}
	if cfg.Emulator.Bus != "gochannel" {
		t.Errorf("Emulator.Bus = %q, want gochannel", cfg.Emulator.Bus)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestEnvKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env  string
		want string
	}{
		{"PLATFORM_URL", "platform.url"},
		{"PLATFORM_ANON_KEY", "platform.anon_key"},
		{"JWT_SECRET", "emulator.jwt_secret"},
		{"CORS_ORIGINS", "emulator.cors_origins"},
		{"LOG_LEVEL", "logging.level"},
		{"BOOKSWAP_EMAIL", "account.email"},
		{"HOME", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		if got := envKey(tt.env); got != tt.want {
			t.Errorf("envKey(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

// Environment-driven tests mutate process env and cannot run in parallel.

func TestLoadFile_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := `
platform:
  url: https://file.example.com
  anon_key: from-file
realtime:
  heartbeat_interval: 5s
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PLATFORM_ANON_KEY", "from-env")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Platform.URL != "https://file.example.com" {
		t.Errorf("Platform.URL = %q, want file value", cfg.Platform.URL)
	}
	if cfg.Platform.AnonKey != "from-env" {
		t.Errorf("Platform.AnonKey = %q, want env override", cfg.Platform.AnonKey)
	}
	if cfg.Realtime.HeartbeatInterval != 5*time.Second {
		t.Errorf("Realtime.HeartbeatInterval = %v, want 5s", cfg.Realtime.HeartbeatInterval)
	}
	if len(cfg.Emulator.CORSOrigins) != 2 || cfg.Emulator.CORSOrigins[1] != "http://b.test" {
		t.Errorf("Emulator.CORSOrigins = %v, want two trimmed origins", cfg.Emulator.CORSOrigins)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadFile_InvalidConfig(t *testing.T) {
	t.Setenv("PLATFORM_URL", "ftp://bad.example.com")

	_, err := LoadFile("")
	if err == nil {
		t.Fatal("expected validation error for ftp scheme")
	}
	if !strings.Contains(err.Error(), "PLATFORM_URL") {
		t.Errorf("expected error to name PLATFORM_URL, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"url with path", func(c *Config) { c.Platform.URL = "http://host/rest" }, "remove path"},
		{"missing anon key", func(c *Config) { c.Platform.AnonKey = "" }, "PLATFORM_ANON_KEY"},
		{"short jwt secret", func(c *Config) { c.Emulator.JWTSecret = "short" }, "JWT_SECRET"},
		{"unknown bus", func(c *Config) { c.Emulator.Bus = "kafka" }, "EMULATOR_BUS"},
		{"bad nats url", func(c *Config) { c.Emulator.Bus = "nats"; c.Emulator.NATSURL = "http://x" }, "NATS_URL"},
		{"zero buffer", func(c *Config) { c.Realtime.EventBuffer = 0 }, "REALTIME_EVENT_BUFFER"},
		{"bucket with slash", func(c *Config) { c.Storage.AvatarBucket = "a/b" }, "STORAGE_AVATAR_BUCKET"},
		{"breaker disabled skips checks", func(c *Config) { c.Breaker = BreakerConfig{} }, ""},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestRealtimeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		base string
		want string
	}{
		{"http://127.0.0.1:54321", "ws://127.0.0.1:54321/realtime/v1/websocket"},
		{"https://project.example.co/", "wss://project.example.co/realtime/v1/websocket"},
	}
	for _, tt := range tests {
		got := PlatformConfig{URL: tt.base}.RealtimeURL()
		if got != tt.want {
			t.Errorf("RealtimeURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestLocate_PathEnvVarFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("platform:\n  anon_key: k\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(PathEnvVar, path)
	if got := locate(); got != path {
		t.Errorf("locate() = %q, want %q", got, path)
	}

	t.Setenv(PathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	if got := locate(); got == path {
		t.Errorf("locate() = %q, want missing env path skipped", got)
	}
}
