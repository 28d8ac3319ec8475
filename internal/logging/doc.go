// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

// Package logging holds the process-wide zerolog logger.
//
// Binaries call Init once with the logging section of their config; until
// then events go to stderr as JSON at info level.
//
//	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
//	logging.Info().Str("listing_id", id).Msg("Listing published")
//
// Work done for one user action carries a correlation id and a screen name
// in its context, and Ctx adds both to every event:
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	ctx = logging.ContextWithScreen(ctx, "chat_thread")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Live updates unavailable")
//
// The emulator's supervisor tree and change bus log through NewSlogLogger
// and NewWatermillAdapter, which write to the same logger.
package logging
