// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

// Package config loads Bookswap configuration with Koanf v2.
//
// Sources are layered: built-in defaults, an optional YAML file (BOOKSWAP_CONFIG,
// ./bookswap.yaml, ./config.yaml, /etc/bookswap/config.yaml), then environment variables.
// Only variables listed in the mapping table are read.
//
// Example config.yaml:
//
//	platform:
//	  url: https://project.example.co
//	  anon_key: public-anon-key
//	realtime:
//	  heartbeat_interval: 25s
//	emulator:
//	  port: 54321
//	  data_dir: /var/lib/bookswap
//	  cors_origins: [http://localhost:8081]
//	logging:
//	  level: debug
//	  format: console
//
// The same Config serves the bookswap CLI (platform, account) and the
// platform-emulator (emulator); both share the logging and realtime sections.
package config
