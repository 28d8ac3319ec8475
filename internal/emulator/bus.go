// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package emulator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/metrics"
	"github.com/tomtom215/bookswap/internal/platform"
)

// ChangesTopic carries every committed row change.
const ChangesTopic = "bookswap.changes"

// Bus kinds.
const (
	BusGoChannel = "gochannel"
	BusNATS      = "nats"
)

// Bus carries row changes from the engine to the realtime hub.
type Bus struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger watermill.LoggerAdapter

	closeOnce sync.Once
	closeErr  error
	release   func() error
}

// NewBus creates the bus named by kind. natsURL is only used by the NATS
// bus; when empty an embedded server is started.
func NewBus(kind, natsURL string) (*Bus, error) {
	logger := logging.NewWatermillAdapter()
	switch kind {
	case "", BusGoChannel:
		pubSub := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            256,
			BlockPublishUntilSubscriberAck: false,
		}, logger)
		return &Bus{pub: pubSub, sub: pubSub, logger: logger}, nil
	case BusNATS:
		return newNATSBus(natsURL, logger)
	default:
		return nil, fmt.Errorf("unknown bus %q", kind)
	}
}

// Publish sends ev on ChangesTopic.
func (b *Bus) Publish(ev platform.ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("table", ev.Table)
	msg.Metadata.Set("type", string(ev.Type))
	if err := b.pub.Publish(ChangesTopic, msg); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	metrics.EmulatorChangesPublished.WithLabelValues(ev.Table, string(ev.Type)).Inc()
	return nil
}

// Hook returns an engine change hook that publishes to the bus. Publish
// failures are logged; the write has already committed.
func (b *Bus) Hook() func(platform.ChangeEvent) {
	return func(ev platform.ChangeEvent) {
		if err := b.Publish(ev); err != nil {
			logging.Error().Err(err).Str("table", ev.Table).Msg("Failed to publish change")
		}
	}
}

// Close closes the publisher, the subscriber and any embedded server.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		var errs []error
		if err := b.pub.Close(); err != nil {
			errs = append(errs, err)
		}
		if b.sub != nil && any(b.sub) != any(b.pub) {
			if err := b.sub.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if b.release != nil {
			if err := b.release(); err != nil {
				errs = append(errs, err)
			}
		}
		b.closeErr = errors.Join(errs...)
	})
	return b.closeErr
}

// Relay forwards bus messages to a sink until its context ends. It is a
// suture service.
type Relay struct {
	bus       *Bus
	sink      func([]byte) error
	ready     chan struct{}
	readyOnce sync.Once
}

// NewRelay creates a relay from bus to sink.
func NewRelay(bus *Bus, sink func([]byte) error) *Relay {
	return &Relay{bus: bus, sink: sink, ready: make(chan struct{})}
}

// Ready closes once the first subscription is in place. Changes published
// before then are not relayed.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Serve subscribes and forwards until ctx is canceled. Messages the sink
// rejects are acked and dropped; they would fail again on redelivery.
func (r *Relay) Serve(ctx context.Context) error {
	messages, err := r.bus.sub.Subscribe(ctx, ChangesTopic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", ChangesTopic, err)
	}
	r.readyOnce.Do(func() { close(r.ready) })
	logging.Info().Str("topic", ChangesTopic).Msg("Change relay started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("change bus subscription closed")
			}
			if err := r.sink(msg.Payload); err != nil {
				logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping undeliverable change")
			}
			msg.Ack()
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (r *Relay) String() string {
	return "change-relay"
}
