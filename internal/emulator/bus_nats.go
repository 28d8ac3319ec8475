// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

//go:build nats

package emulator

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
)

// newNATSBus connects the bus to NATS core subjects. Without a URL an
// embedded server is started on a random local port and shut down by Close.
func newNATSBus(url string, logger watermill.LoggerAdapter) (*Bus, error) {
	var embedded *server.Server
	if url == "" {
		ns, err := startEmbeddedNATS()
		if err != nil {
			return nil, err
		}
		embedded = ns
		url = ns.ClientURL()
	}

	shutdown := func() error {
		if embedded != nil {
			embedded.Shutdown()
			embedded.WaitForShutdown()
		}
		return nil
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	// Change fan-out is live-only, so plain subjects suffice.
	jetStream := wmNats.JetStreamConfig{Disabled: true}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   jetStream,
	}, logger)
	if err != nil {
		_ = shutdown()
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     5 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        jetStream,
	}, logger)
	if err != nil {
		_ = pub.Close()
		_ = shutdown()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	logger.Info("NATS change bus connected", watermill.LogFields{"url": url, "embedded": embedded != nil})
	return &Bus{pub: pub, sub: sub, logger: logger, release: shutdown}, nil
}

func startEmbeddedNATS() (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{
		ServerName: "bookswap-emulator",
		Host:       "127.0.0.1",
		Port:       server.RANDOM_PORT,
		NoLog:      true,
		MaxPayload: 8 * 1024 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}
	return ns, nil
}
