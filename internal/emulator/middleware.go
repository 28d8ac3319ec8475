// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package emulator

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/metrics"
	ws "github.com/tomtom215/bookswap/internal/websocket"
)

type ctxKey int

const (
	ctxClaims ctxKey = iota
)

// claimsFrom returns the verified caller, if any.
func claimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxClaims).(*Claims)
	return c, ok
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "apikey", "Prefer", "Accept"},
		AllowCredentials: false,
		MaxAge:           86400,
	})
}

func rateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			respondError(w, http.StatusTooManyRequests, "", "rate limit exceeded")
		}),
	)
}

// requireAPIKey rejects requests without the anon key, from the apikey
// header or query parameter.
func requireAPIKey(anonKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("apikey")
			if key == "" {
				key = r.URL.Query().Get("apikey")
			}
			if key != anonKey {
				respondError(w, http.StatusUnauthorized, "", "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate attaches verified claims. The anon key as bearer means a
// signed-out caller; any other token must verify.
func authenticate(tokens *Tokens, anonKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r)
			if token == "" || token == anonKey {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := tokens.Verify(token)
			if err != nil {
				logging.Debug().Err(err).Msg("Rejected bearer token")
				respondError(w, http.StatusUnauthorized, "PGRST301", "JWT expired or invalid")
				return
			}
			ctx := context.WithValue(r.Context(), ctxClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// realtimeVerifier checks realtime join tokens with the same rules as
// authenticate. The anon key joins anonymously.
func realtimeVerifier(tokens *Tokens, anonKey string) ws.TokenVerifier {
	return func(token string) (string, error) {
		if token == anonKey {
			return "", nil
		}
		return tokens.UserID(token)
	}
}

// requireUser rejects signed-out callers.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := claimsFrom(r.Context()); !ok {
			respondError(w, http.StatusUnauthorized, "", "not signed in")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recordMetrics records request counts and latency by route pattern.
func recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordEmulatorRequest(r.Method, route, strconv.Itoa(status), time.Since(start))
	})
}
