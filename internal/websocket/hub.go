// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/metrics"
	"github.com/tomtom215/bookswap/internal/platform"
)

// TokenVerifier resolves an access token to a user id. Joins carrying a
// token that fails verification are rejected; an empty id with a nil error
// joins anonymously.
type TokenVerifier func(token string) (userID string, err error)

// Hub maintains the set of active clients and fans row changes out to the
// channels they joined.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	changes chan platform.ChangeEvent
	verify  TokenVerifier

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates a hub. verify may be nil, in which case tokens are not
// checked.
func NewHub(verify TokenVerifier) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		changes:    make(chan platform.ChangeEvent, 256),
		verify:     verify,
		clients:    make(map[*Client]struct{}),
	}
}

// RunWithContext runs the hub until ctx is canceled, then closes every
// client and returns ctx.Err(). It is a suture service body.
//
// Pending registrations are drained before each change, so a client that
// joined before a commit sees it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case ev := <-h.changes:
			h.fanOut(ev)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.EmulatorHubClients.Set(float64(n))
	logging.Info().Int("total_clients", n).Msg("Realtime client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.EmulatorHubClients.Set(float64(n))
	logging.Info().Int("total_clients", n).Msg("Realtime client disconnected")
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	n := len(h.clients)
	for _, client := range h.sortedClients() {
		client.close()
		delete(h.clients, client)
	}
	h.mu.Unlock()
	metrics.EmulatorHubClients.Set(0)

	logging.Info().
		Str("component", "realtime-hub").
		Str("reason", ctx.Err().Error()).
		Int("clients_closed", n).
		Msg("Realtime hub stopped")
}

// sortedClients returns the clients in id order. Callers hold h.mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	return clients
}

// fanOut delivers ev to every joined channel whose filter
// matches the row, in client id order. Clients whose send buffer is full
// are dropped.
func (h *Hub) fanOut(ev platform.ChangeEvent) {
	raw := ev.Record
	if ev.Type == platform.EventDelete {
		raw = ev.OldRecord
	}
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		logging.Warn().Err(err).Str("table", ev.Table).Msg("Dropping change with unreadable row")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	dropped := false
	for _, client := range h.sortedClients() {
		if client.deliver(ev, row) {
			continue
		}
		logging.Warn().Uint64("client_id", client.id).Msg("Dropping slow realtime client")
		client.close()
		delete(h.clients, client)
		dropped = true
	}
	if dropped {
		metrics.EmulatorHubClients.Set(float64(len(h.clients)))
	}
}

// Publish queues a change for fan-out. It never blocks; when the queue is
// full the change is dropped and logged.
func (h *Hub) Publish(ev platform.ChangeEvent) {
	select {
	case h.changes <- ev:
	default:
		logging.Warn().Str("table", ev.Table).Str("type", string(ev.Type)).Msg("Change queue full, dropping change")
	}
}

// PublishJSON decodes a change event and publishes it. It is the sink for
// change-bus messages.
func (h *Hub) PublishJSON(data []byte) error {
	var ev platform.ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	h.Publish(ev)
	return nil
}

// Clients counts connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
