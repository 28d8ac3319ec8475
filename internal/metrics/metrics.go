// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Remote gateway calls (tables, auth, storage)
// - Circuit breaker state
// - Realtime subscriptions and change events
// - Feed reconciliation and optimistic mutation outcomes
// - The local platform emulator

var (
	// Gateway Metrics
	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookswap_gateway_requests_total",
			Help: "Total number of remote platform calls",
		},
		[]string{"operation", "table", "result"}, // result: "success", "error"
	)

	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookswap_gateway_request_duration_seconds",
			Help:    "Duration of remote platform calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bookswap_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookswap_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookswap_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Realtime Metrics
	RealtimeSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookswap_realtime_subscriptions",
			Help: "Current number of open change-feed subscriptions",
		},
	)

	RealtimeSubscribeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookswap_realtime_subscribe_failures_total",
			Help: "Total number of subscriptions that could not be opened",
		},
		[]string{"table"},
	)

	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookswap_realtime_events_total",
			Help: "Total number of change events received",
		},
		[]string{"table", "type"},
	)

	// Feed Metrics
	FeedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookswap_feed_events_total",
			Help: "Change events processed by feed reconcilers by outcome",
		},
		[]string{"feed", "outcome"}, // outcome: applied, duplicate, tombstoned, ignored, invalid
	)

	// Optimistic Mutation Metrics
	OptimisticMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookswap_optimistic_mutations_total",
			Help: "Optimistic mutations by outcome",
		},
		[]string{"mutation", "outcome"}, // outcome: committed, rolled_back
	)

	// Emulator Metrics
	EmulatorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookswap_emulator_requests_total",
			Help: "Total number of emulator API requests",
		},
		[]string{"method", "route", "status"},
	)

	EmulatorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookswap_emulator_request_duration_seconds",
			Help:    "Emulator API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	EmulatorHubClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookswap_emulator_realtime_clients",
			Help: "Current number of websocket clients connected to the emulator",
		},
	)

	EmulatorChangesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookswap_emulator_changes_published_total",
			Help: "Row changes published on the emulator change bus",
		},
		[]string{"table", "type"},
	)
)

// Feed outcomes.
const (
	FeedApplied    = "applied"
	FeedDuplicate  = "duplicate"
	FeedTombstoned = "tombstoned"
	FeedIgnored    = "ignored"
	FeedInvalid    = "invalid"
)

// RecordGatewayRequest records one remote platform call.
func RecordGatewayRequest(operation, table string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	GatewayRequests.WithLabelValues(operation, table, result).Inc()
	GatewayDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordFeedEvent records how a reconciler handled one change event.
func RecordFeedEvent(feed, outcome string) {
	FeedEvents.WithLabelValues(feed, outcome).Inc()
}

// RecordOptimistic records the outcome of an optimistic mutation.
func RecordOptimistic(mutation string, committed bool) {
	outcome := "committed"
	if !committed {
		outcome = "rolled_back"
	}
	OptimisticMutations.WithLabelValues(mutation, outcome).Inc()
}

// TrackSubscription adjusts the open subscription gauge.
func TrackSubscription(open bool) {
	if open {
		RealtimeSubscriptions.Inc()
	} else {
		RealtimeSubscriptions.Dec()
	}
}

// RecordEmulatorRequest records an emulator API request metric.
func RecordEmulatorRequest(method, route, status string, duration time.Duration) {
	EmulatorRequests.WithLabelValues(method, route, status).Inc()
	EmulatorRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
