// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

// Command platform-emulator serves a local stand-in for the hosted
// platform: REST tables, password auth, object storage and the realtime
// change feed, persisted in BadgerDB.
//
// Configuration comes from config.yaml and environment variables, for
// example:
//
//	EMULATOR_PORT=54321 EMULATOR_DATA_DIR=./data JWT_SECRET=$(openssl rand -hex 32) ./platform-emulator
//
// Build with -tags nats to allow EMULATOR_BUS=nats, which routes change
// events through NATS (an embedded server when NATS_URL is empty).
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/bookswap/internal/config"
	"github.com/tomtom215/bookswap/internal/emulator"
	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/supervisor"
	"github.com/tomtom215/bookswap/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	emu, err := emulator.New(cfg.Emulator)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to start platform emulator")
	}
	defer func() {
		if err := emu.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing emulator")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Emulator.ShutdownTimeout,
	})

	server := &http.Server{
		Addr:              cfg.Emulator.Addr(),
		Handler:           emu.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	tree.AddStorageService(emulator.NewGCService(emu.Store(), cfg.Emulator.GCInterval))
	tree.AddRealtimeService(services.NewRealtimeHubService(emu.Hub()))
	tree.AddRealtimeService(emu.Relay())
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Emulator.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().
		Str("addr", server.Addr).
		Str("bus", cfg.Emulator.Bus).
		Bool("persistent", cfg.Emulator.DataDir != "").
		Msg("Platform emulator listening")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}
	logging.Info().Msg("Platform emulator stopped")
}
