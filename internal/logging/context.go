// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type (
	correlationKey struct{}
	screenKey      struct{}
	loggerKey      struct{}
)

// GenerateCorrelationID returns the first 8 characters of a random UUID.
func GenerateCorrelationID() string {
	return uuid.NewString()[:8]
}

// ContextWithCorrelationID tags ctx so every log line and remote call made
// under it can be tied back to one user action.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// ContextWithNewCorrelationID tags ctx with a fresh id.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns the id, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// ContextWithScreen names the screen or command that owns ctx, such as
// "chat_thread" or "listings".
func ContextWithScreen(ctx context.Context, screen string) context.Context {
	return context.WithValue(ctx, screenKey{}, screen)
}

// ScreenFromContext returns the screen name, or "".
func ScreenFromContext(ctx context.Context) string {
	s, _ := ctx.Value(screenKey{}).(string)
	return s
}

// ContextWithLogger overrides the logger Ctx starts from.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext returns the logger stored in ctx, else the global one.
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return l
	}
	return *current()
}

// Ctx returns LoggerFromContext with correlation_id and screen attached
// when ctx carries them.
//
//	logging.Ctx(ctx).Warn().Err(err).Msg("Live updates unavailable")
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := LoggerFromContext(ctx).With()
	if id := CorrelationIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("correlation_id", id)
	}
	if s := ScreenFromContext(ctx); s != "" {
		logCtx = logCtx.Str("screen", s)
	}
	l := logCtx.Logger()
	return &l
}
