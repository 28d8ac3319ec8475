// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// MinJWTSecretLength is the minimum emulator JWT secret length when one is set.
const MinJWTSecretLength = 32

// Validate checks the loaded configuration for errors.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validatePlatform,
		c.validateBreaker,
		c.validateRealtime,
		c.validateStorage,
		c.validateEmulator,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validatePlatform() error {
	if c.Platform.URL == "" {
		return fmt.Errorf("PLATFORM_URL is required")
	}
	if err := validateHTTPURL(c.Platform.URL, "PLATFORM_URL"); err != nil {
		return err
	}
	if c.Platform.AnonKey == "" {
		return fmt.Errorf("PLATFORM_ANON_KEY is required")
	}
	if c.Platform.RequestTimeout <= 0 {
		return fmt.Errorf("PLATFORM_REQUEST_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if !c.Breaker.Enabled {
		return nil
	}
	if c.Breaker.MaxRequests == 0 {
		return fmt.Errorf("BREAKER_MAX_REQUESTS must be at least 1")
	}
	if c.Breaker.FailureThreshold == 0 {
		return fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be at least 1")
	}
	if c.Breaker.Timeout <= 0 || c.Breaker.Interval < 0 {
		return fmt.Errorf("BREAKER_TIMEOUT must be positive and BREAKER_INTERVAL non-negative")
	}
	return nil
}

func (c *Config) validateRealtime() error {
	if c.Realtime.HandshakeTimeout <= 0 {
		return fmt.Errorf("REALTIME_HANDSHAKE_TIMEOUT must be positive")
	}
	if c.Realtime.HeartbeatInterval < time.Second {
		return fmt.Errorf("REALTIME_HEARTBEAT_INTERVAL must be at least 1s")
	}
	if c.Realtime.EventBuffer < 1 || c.Realtime.EventBuffer > 65536 {
		return fmt.Errorf("REALTIME_EVENT_BUFFER must be between 1 and 65536")
	}
	return nil
}

func (c *Config) validateStorage() error {
	buckets := map[string]string{
		"STORAGE_LISTING_BUCKET":   c.Storage.ListingBucket,
		"STORAGE_COMMUNITY_BUCKET": c.Storage.CommunityBucket,
		"STORAGE_AVATAR_BUCKET":    c.Storage.AvatarBucket,
	}
	for name, bucket := range buckets {
		if bucket == "" {
			return fmt.Errorf("%s is required", name)
		}
		if strings.ContainsAny(bucket, "/?# ") {
			return fmt.Errorf("%s contains invalid characters: %q", name, bucket)
		}
	}
	return nil
}

func (c *Config) validateEmulator() error {
	e := c.Emulator
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("EMULATOR_PORT must be between 1 and 65535")
	}
	if e.JWTSecret != "" && len(e.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", MinJWTSecretLength)
	}
	if e.SessionTimeout <= 0 {
		return fmt.Errorf("EMULATOR_SESSION_TIMEOUT must be positive")
	}
	if e.RateLimitReqs < 1 || e.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	switch e.Bus {
	case "gochannel":
	case "nats":
		if e.NATSURL != "" {
			if err := validateNATSURL(e.NATSURL); err != nil {
				return fmt.Errorf("NATS_URL is invalid: %w", err)
			}
		}
	default:
		return fmt.Errorf("EMULATOR_BUS must be gochannel or nats, got: %s", e.Bus)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got: %s", c.Logging.Format)
	}
}

// validateHTTPURL validates that a URL is properly formatted for HTTP/HTTPS services.
// Validates: scheme (http/https), host present, no paths or query params.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsedURL.Path)
	}

	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}

	return nil
}

// validateNATSURL accepts nats://, tls://, ws:// and wss:// with a host.
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222)")
	}

	return nil
}
