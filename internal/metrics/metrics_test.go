// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	h, ok := o.(prometheus.Histogram)
	if !ok {
		t.Fatalf("observer %T is not a histogram", o)
	}
	var m io_prometheus_client.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestRecordGatewayRequest(t *testing.T) {
	before := testutil.ToFloat64(GatewayRequests.WithLabelValues("select", "test_rows", "error"))

	RecordGatewayRequest("select", "test_rows", 5*time.Millisecond, nil)
	RecordGatewayRequest("select", "test_rows", 5*time.Millisecond, errors.New("boom"))

	after := testutil.ToFloat64(GatewayRequests.WithLabelValues("select", "test_rows", "error"))
	if n := histogramCount(t, GatewayDuration.WithLabelValues("select", "test_rows")); n < 2 {
		t.Errorf("duration samples = %d, want >= 2", n)
	}
	if after-before != 1 {
		t.Errorf("expected one error recorded, got %v", after-before)
	}
	if got := testutil.ToFloat64(GatewayRequests.WithLabelValues("select", "test_rows", "success")); got < 1 {
		t.Errorf("expected success recorded, got %v", got)
	}
}

func TestRecordFeedEvent(t *testing.T) {
	before := testutil.ToFloat64(FeedEvents.WithLabelValues("test_feed", FeedDuplicate))
	RecordFeedEvent("test_feed", FeedDuplicate)
	RecordFeedEvent("test_feed", FeedDuplicate)
	if got := testutil.ToFloat64(FeedEvents.WithLabelValues("test_feed", FeedDuplicate)) - before; got != 2 {
		t.Errorf("expected 2 duplicates, got %v", got)
	}
}

func TestRecordOptimistic(t *testing.T) {
	RecordOptimistic("test_mutation", true)
	RecordOptimistic("test_mutation", false)

	if got := testutil.ToFloat64(OptimisticMutations.WithLabelValues("test_mutation", "committed")); got < 1 {
		t.Errorf("expected committed count, got %v", got)
	}
	if got := testutil.ToFloat64(OptimisticMutations.WithLabelValues("test_mutation", "rolled_back")); got < 1 {
		t.Errorf("expected rolled_back count, got %v", got)
	}
}

func TestTrackSubscription(t *testing.T) {
	before := testutil.ToFloat64(RealtimeSubscriptions)
	TrackSubscription(true)
	TrackSubscription(true)
	TrackSubscription(false)
	if got := testutil.ToFloat64(RealtimeSubscriptions) - before; got != 1 {
		t.Errorf("expected net +1 subscriptions, got %v", got)
	}
}

func TestRecordEmulatorRequest(t *testing.T) {
	RecordEmulatorRequest("GET", "/rest/v1/{table}", "200", time.Millisecond)
	if got := testutil.ToFloat64(EmulatorRequests.WithLabelValues("GET", "/rest/v1/{table}", "200")); got < 1 {
		t.Errorf("expected request counted, got %v", got)
	}
}
