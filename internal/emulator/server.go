// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package emulator

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/bookswap/internal/config"
	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/platform/memory"
	ws "github.com/tomtom215/bookswap/internal/websocket"
)

// Emulator is a local platform: REST tables, password auth, object
// storage and the realtime change feed, backed by a memory engine.
type Emulator struct {
	cfg    config.EmulatorConfig
	engine *memory.Engine
	store  *BadgerPersister
	tokens *Tokens
	hub    *ws.Hub
	bus    *Bus
	relay  *Relay
	router http.Handler
}

// New opens the store, restores state and wires the change path
// engine → bus → relay → hub. Nothing runs until the hub and relay are
// served.
func New(cfg config.EmulatorConfig) (*Emulator, error) {
	if cfg.AnonKey == "" {
		return nil, errors.New("emulator anon key is required")
	}
	tokens, err := NewTokens(cfg.JWTSecret, cfg.SessionTimeout)
	if err != nil {
		return nil, err
	}

	store, err := OpenBadger(cfg.DataDir)
	if err != nil {
		tokens.Close()
		return nil, err
	}

	engine, err := memory.New(
		memory.WithPersister(store),
		memory.WithPublicBase(fmt.Sprintf("http://%s", cfg.Addr())),
	)
	if err != nil {
		_ = store.Close()
		tokens.Close()
		return nil, err
	}

	bus, err := NewBus(cfg.Bus, cfg.NATSURL)
	if err != nil {
		_ = store.Close()
		tokens.Close()
		return nil, err
	}
	engine.OnChange(bus.Hook())

	hub := ws.NewHub(realtimeVerifier(tokens, cfg.AnonKey))
	e := &Emulator{
		cfg:    cfg,
		engine: engine,
		store:  store,
		tokens: tokens,
		hub:    hub,
		bus:    bus,
		relay:  NewRelay(bus, hub.PublishJSON),
	}
	e.router = e.routes()
	return e, nil
}

// routes builds the chi router.
func (e *Emulator) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(e.cfg.CORSOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "realtime_clients": e.hub.Clients()})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Public objects need no key, like a CDN link.
	r.With(recordMetrics).Get("/storage/v1/object/public/{bucket}/*", e.download)

	r.Group(func(r chi.Router) {
		r.Use(requireAPIKey(e.cfg.AnonKey))
		r.Use(rateLimit(e.cfg.RateLimitReqs, e.cfg.RateLimitWindow))

		// The realtime socket authenticates per join, not per request.
		r.Get("/realtime/v1/websocket", ws.Handler(e.hub, e.cfg.CORSOrigins))

		r.Group(func(r chi.Router) {
			r.Use(recordMetrics)
			r.Use(chimiddleware.Compress(5, "application/json"))
			r.Use(authenticate(e.tokens, e.cfg.AnonKey))

			r.Get("/rest/v1/{table}", e.selectRows)
			r.With(requireUser).Post("/rest/v1/{table}", e.insertRows)
			r.With(requireUser).Patch("/rest/v1/{table}", e.updateRows)
			r.With(requireUser).Delete("/rest/v1/{table}", e.deleteRows)

			r.Route("/auth/v1", func(r chi.Router) {
				r.Post("/signup", e.signUp)
				r.Post("/token", e.token)
				r.Post("/recover", e.recoverPassword)
				r.With(requireUser).Post("/logout", e.logout)
				r.With(requireUser).Get("/user", e.currentUser)
			})

			r.With(requireUser).Post("/storage/v1/object/{bucket}/*", e.upload)
		})
	})
	return r
}

// Handler returns the HTTP handler.
func (e *Emulator) Handler() http.Handler { return e.router }

// Hub returns the realtime hub. Serve it with RunWithContext.
func (e *Emulator) Hub() *ws.Hub { return e.hub }

// Relay returns the bus-to-hub relay service.
func (e *Emulator) Relay() *Relay { return e.relay }

// Engine returns the backing engine.
func (e *Emulator) Engine() *memory.Engine { return e.engine }

// Store returns the badger store. Serve NewGCService(Store(), ...) to
// reclaim value log space.
func (e *Emulator) Store() *BadgerPersister { return e.store }

// Tokens returns the token manager.
func (e *Emulator) Tokens() *Tokens { return e.tokens }

// Close releases the bus, the store and the token cache. Serve loops must
// have stopped first.
func (e *Emulator) Close() error {
	var errs []error
	if err := e.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close bus: %w", err))
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	e.tokens.Close()
	logging.Info().Msg("Emulator closed")
	return errors.Join(errs...)
}
