// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

/*
Package supervisor runs the platform emulator's long-lived services under
a suture v4 tree.

	Root ("bookswap-emulator")
	├── storage-layer
	│   └── store-gc         (badger value log GC)
	├── realtime-layer
	│   ├── realtime-hub     (websocket fan-out)
	│   └── change-relay     (bus subscriber feeding the hub)
	└── api-layer
	    └── http-server      (REST, auth, storage, websocket upgrade)

Each layer counts failures on its own, so a relay that keeps failing backs
off without restarting the HTTP server. Supervisor events are logged through
sutureslog with the slog logger from internal/logging.

Usage:

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Emulator.ShutdownTimeout,
	})
	tree.AddRealtimeService(services.NewRealtimeHubService(emu.Hub()))
	tree.AddRealtimeService(emu.Relay())
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Emulator.ShutdownTimeout))
	err := tree.Serve(ctx)
*/
package supervisor
