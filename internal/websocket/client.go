// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/platform"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
	sendBuffer     = 256

	// Joins verify a token and allocate a topic, so each connection gets a
	// bounded join rate. Heartbeats and leaves are not limited.
	joinRate  = rate.Limit(20)
	joinBurst = 40
)

// clientIDCounter orders clients for deterministic fan-out.
var clientIDCounter atomic.Uint64

// Client is one realtime websocket connection and the channels it joined.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn

	joins *rate.Limiter

	mu     sync.Mutex
	send   chan platform.Frame
	closed bool
	topics map[string]platform.Filter
}

// NewClient creates a Client with a unique, increasing id.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:     clientIDCounter.Add(1),
		hub:    hub,
		conn:   conn,
		joins:  rate.NewLimiter(joinRate, joinBurst),
		send:   make(chan platform.Frame, sendBuffer),
		topics: make(map[string]platform.Filter),
	}
}

// ID returns the client's id.
func (c *Client) ID() uint64 {
	return c.id
}

// Topics returns the number of joined channels.
func (c *Client) Topics() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.topics)
}

// enqueue queues a frame without blocking. It reports false when the
// client is closed or its buffer is full.
func (c *Client) enqueue(f platform.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

// close closes the send channel once. The hub calls it while holding its
// own lock.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// deliver sends ev on every joined topic whose filter matches row. It
// returns false if any frame could not be queued.
func (c *Client) deliver(ev platform.ChangeEvent, row map[string]any) bool {
	payload, err := json.Marshal(platform.ChangesPayload{Data: ev})
	if err != nil {
		logging.Warn().Err(err).Str("table", ev.Table).Msg("Failed to encode change payload")
		return true
	}

	c.mu.Lock()
	var topics []string
	for topic, filter := range c.topics {
		if filter.Table == ev.Table && filter.Matches(row) {
			topics = append(topics, topic)
		}
	}
	c.mu.Unlock()

	for _, topic := range topics {
		if !c.enqueue(platform.Frame{Topic: topic, Event: platform.EventChanges, Payload: payload}) {
			return false
		}
	}
	return true
}

// reply queues a phx_reply for ref.
func (c *Client) reply(topic, ref, status string, response any) {
	var body json.RawMessage
	if response != nil {
		data, err := json.Marshal(response)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to encode realtime reply")
			return
		}
		body = data
	}
	payload, err := json.Marshal(platform.ReplyPayload{Status: status, Response: body})
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to encode realtime reply")
		return
	}
	if !c.enqueue(platform.Frame{Topic: topic, Event: platform.EventReply, Payload: payload, Ref: ref}) {
		logging.Debug().Uint64("client_id", c.id).Str("topic", topic).Msg("Realtime reply dropped")
	}
}

type rejection struct {
	Reason string `json:"reason"`
}

// handle processes one inbound frame.
func (c *Client) handle(f platform.Frame) {
	switch f.Event {
	case platform.EventHeartbeat:
		c.reply(platform.HeartbeatTopic, f.Ref, "ok", nil)

	case platform.EventJoin:
		if !c.joins.Allow() {
			c.reply(f.Topic, f.Ref, "error", rejection{Reason: "too many joins"})
			return
		}
		c.join(f)

	case platform.EventLeave:
		c.mu.Lock()
		delete(c.topics, f.Topic)
		c.mu.Unlock()
		c.reply(f.Topic, f.Ref, "ok", nil)

	default:
		logging.Debug().Str("event", f.Event).Msg("Ignoring realtime frame")
	}
}

func (c *Client) join(f platform.Frame) {
	var join platform.JoinPayload
	if err := json.Unmarshal(f.Payload, &join); err != nil {
		c.reply(f.Topic, f.Ref, "error", rejection{Reason: "invalid join payload"})
		return
	}
	if len(join.Config.PostgresChanges) != 1 {
		c.reply(f.Topic, f.Ref, "error", rejection{Reason: "exactly one postgres_changes entry is required"})
		return
	}

	userID := "anon"
	if join.AccessToken != "" && c.hub.verify != nil {
		id, err := c.hub.verify(join.AccessToken)
		if err != nil {
			logging.Debug().Err(err).Str("topic", f.Topic).Msg("Realtime join rejected")
			c.reply(f.Topic, f.Ref, "error", rejection{Reason: "invalid access token"})
			return
		}
		if id != "" {
			userID = id
		}
	}

	filter, err := platform.FilterFromSpec(join.Config.PostgresChanges[0])
	if err != nil || filter.Table == "" {
		reason := "table is required"
		if err != nil {
			reason = err.Error()
		}
		c.reply(f.Topic, f.Ref, "error", rejection{Reason: reason})
		return
	}

	c.mu.Lock()
	c.topics[f.Topic] = filter
	c.mu.Unlock()

	logging.Debug().Str("topic", f.Topic).Str("filter", filter.String()).Str("user_id", userID).Msg("Realtime channel joined")
	c.reply(f.Topic, f.Ref, "ok", nil)
}

// readPump reads frames until the connection fails, then unregisters.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close() // best-effort cleanup
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f platform.Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close error")
			}
			return
		}
		// Any frame, heartbeats included, proves the peer is alive.
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return
		}
		c.handle(f)
	}
}

// writePump writes queued frames and pings until send closes.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // best-effort cleanup
	}()

	for {
		select {
		case f, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(f); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start runs the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
