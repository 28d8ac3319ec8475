// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// SearchPaths are tried in order when no config file is named.
var SearchPaths = []string{"bookswap.yaml", "config.yaml", "/etc/bookswap/config.yaml"}

// PathEnvVar names a config file and takes precedence over SearchPaths.
const PathEnvVar = "BOOKSWAP_CONFIG"

// defaultConfig returns a Config pointing at a local emulator.
func defaultConfig() *Config {
	return &Config{
		Platform: PlatformConfig{
			URL:            "http://127.0.0.1:54321",
			AnonKey:        "local-anon-key",
			RequestTimeout: 30 * time.Second,
		},
		Breaker: BreakerConfig{
			Enabled:          true,
			MaxRequests:      3,
			Interval:         30 * time.Second,
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
		},
		Realtime: RealtimeConfig{
			HandshakeTimeout:  10 * time.Second,
			HeartbeatInterval: 25 * time.Second,
			EventBuffer:       256,
		},
		Storage: StorageConfig{
			ListingBucket:   "listing-images",
			CommunityBucket: "community-images",
			AvatarBucket:    "avatars",
		},
		Emulator: EmulatorConfig{
			Host:            "127.0.0.1",
			Port:            54321,
			DataDir:         "",
			AnonKey:         "local-anon-key",
			JWTSecret:       "",
			SessionTimeout:  24 * time.Hour,
			CORSOrigins:     []string{},
			RateLimitReqs:   600,
			RateLimitWindow: time.Minute,
			Bus:             "gochannel",
			NATSURL:         "",
			ShutdownTimeout: 10 * time.Second,
			GCInterval:      5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load layers defaults, the first config file found, and the environment,
// in rising priority, then validates the result.
func Load() (*Config, error) {
	return LoadFile(locate())
}

// LoadFile is Load with an explicit config file. An empty path skips the
// file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	layers := []struct {
		name   string
		source koanf.Provider
		parser koanf.Parser
	}{
		{"defaults", structs.Provider(defaultConfig(), "koanf"), nil},
		{path, file.Provider(path), yaml.Parser()},
		{"environment", env.Provider("", ".", envKey), nil},
	}
	for _, l := range layers {
		if l.name == "" {
			continue
		}
		if err := k.Load(l.source, l.parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", l.name, err)
		}
	}

	for _, key := range listKeys {
		if err := splitList(k, key); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func locate() string {
	candidates := SearchPaths
	if p := os.Getenv(PathEnvVar); p != "" {
		candidates = append([]string{p}, candidates...)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// listKeys hold lists that the environment supplies comma separated.
var listKeys = []string{"emulator.cors_origins"}

func splitList(k *koanf.Koanf, key string) error {
	raw, ok := k.Get(key).(string)
	if !ok {
		return nil
	}
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if items == nil {
		items = []string{}
	}
	if err := k.Set(key, items); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak in.
var envMappings = map[string]string{
	"platform_url":             "platform.url",
	"platform_anon_key":        "platform.anon_key",
	"platform_request_timeout": "platform.request_timeout",

	"breaker_enabled":           "breaker.enabled",
	"breaker_max_requests":      "breaker.max_requests",
	"breaker_interval":          "breaker.interval",
	"breaker_timeout":           "breaker.timeout",
	"breaker_failure_threshold": "breaker.failure_threshold",

	"realtime_handshake_timeout":  "realtime.handshake_timeout",
	"realtime_heartbeat_interval": "realtime.heartbeat_interval",
	"realtime_event_buffer":       "realtime.event_buffer",

	"storage_listing_bucket":   "storage.listing_bucket",
	"storage_community_bucket": "storage.community_bucket",
	"storage_avatar_bucket":    "storage.avatar_bucket",

	"bookswap_email":    "account.email",
	"bookswap_password": "account.password",

	"emulator_host":              "emulator.host",
	"emulator_port":              "emulator.port",
	"emulator_data_dir":          "emulator.data_dir",
	"emulator_anon_key":          "emulator.anon_key",
	"jwt_secret":                 "emulator.jwt_secret",
	"emulator_session_timeout":   "emulator.session_timeout",
	"cors_origins":               "emulator.cors_origins",
	"rate_limit_requests":        "emulator.rate_limit_reqs",
	"rate_limit_window":          "emulator.rate_limit_window",
	"emulator_bus":               "emulator.bus",
	"nats_url":                   "emulator.nats_url",
	"emulator_shutdown_timeout":  "emulator.shutdown_timeout",
	"emulator_gc_interval":       "emulator.gc_interval",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envKey maps an environment variable to its config key, or "" to skip it.
//
//	PLATFORM_URL -> platform.url
//	JWT_SECRET   -> emulator.jwt_secret
func envKey(name string) string {
	return envMappings[strings.ToLower(name)]
}
