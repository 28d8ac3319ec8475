// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

// Package metrics defines the Prometheus metrics for Bookswap.
//
// All collectors are registered on the default registry through promauto.
// The platform-emulator exposes them at /metrics; the CLI only records.
//
// Families:
//
//	bookswap_gateway_*           remote platform calls by operation and table
//	bookswap_circuit_breaker_*   breaker state, results and transitions
//	bookswap_realtime_*          open subscriptions, failures, events by type
//	bookswap_feed_events_total   reconciler outcomes per feed
//	bookswap_optimistic_*        committed and rolled back optimistic mutations
//	bookswap_emulator_*          emulator requests, hub clients, published changes
package metrics
