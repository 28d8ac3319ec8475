// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

// Command bookswap is a terminal client for the marketplace: browse and
// publish listings, keep favorites, chat with sellers and follow community
// walls. Live commands (chat, wall, unread --watch) stay subscribed until
// stdin closes or the process is interrupted.
//
//	export PLATFORM_URL=http://127.0.0.1:54321 PLATFORM_ANON_KEY=local-anon-key
//	export BOOKSWAP_EMAIL=reader@example.com BOOKSWAP_PASSWORD=secret1
//	bookswap listings --search dune
//	bookswap chat start <listing-id>
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/bookswap/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logging.Debug().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
