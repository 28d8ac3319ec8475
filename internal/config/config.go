// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all configuration for the Bookswap client core, the CLI and the
// local platform emulator.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults pointing at a local emulator
//  2. Config File: Optional YAML config file (config.yaml or BOOKSWAP_CONFIG)
//  3. Environment Variables: Override any setting
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Platform PlatformConfig `koanf:"platform"`
	Breaker  BreakerConfig  `koanf:"breaker"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Storage  StorageConfig  `koanf:"storage"`
	Account  AccountConfig  `koanf:"account"`
	Emulator EmulatorConfig `koanf:"emulator"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// PlatformConfig locates the hosted backend platform.
//
// Environment Variables:
//   - PLATFORM_URL: Base URL of the platform (default: http://127.0.0.1:54321)
//   - PLATFORM_ANON_KEY: Public API key sent as the apikey header
//   - PLATFORM_REQUEST_TIMEOUT: Transport timeout for one REST call (default: 30s)
type PlatformConfig struct {
	URL            string        `koanf:"url"`
	AnonKey        string        `koanf:"anon_key"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// RealtimeURL derives the websocket endpoint from the platform URL.
func (p PlatformConfig) RealtimeURL() string {
	base := strings.TrimSuffix(p.URL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/realtime/v1/websocket"
}

// BreakerConfig configures the circuit breaker in front of the gateway.
// The breaker never retries; it only fails fast while the platform is down.
type BreakerConfig struct {
	Enabled          bool          `koanf:"enabled"`
	MaxRequests      uint32        `koanf:"max_requests"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
}

// RealtimeConfig configures the change-feed websocket connection.
type RealtimeConfig struct {
	HandshakeTimeout  time.Duration `koanf:"handshake_timeout"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	// EventBuffer is the per-subscription channel capacity.
	EventBuffer int `koanf:"event_buffer"`
}

// StorageConfig names the object storage buckets.
type StorageConfig struct {
	ListingBucket   string `koanf:"listing_bucket"`
	CommunityBucket string `koanf:"community_bucket"`
	AvatarBucket    string `koanf:"avatar_bucket"`
}

// AccountConfig holds CLI credentials. Never persisted by the client.
type AccountConfig struct {
	Email    string `koanf:"email"`
	Password string `koanf:"password"`
}

// EmulatorConfig configures the local development platform.
type EmulatorConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	DataDir         string        `koanf:"data_dir"`
	AnonKey         string        `koanf:"anon_key"`
	JWTSecret       string        `koanf:"jwt_secret"`
	SessionTimeout  time.Duration `koanf:"session_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	// Bus selects the change bus: "gochannel" (default) or "nats"
	// (requires building with -tags nats).
	Bus             string        `koanf:"bus"`
	NATSURL         string        `koanf:"nats_url"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// GCInterval is how often the badger value log is garbage collected.
	GCInterval      time.Duration `koanf:"gc_interval"`
}

// Addr returns host:port for the emulator listener.
func (e EmulatorConfig) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
