// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

/*
realtime.go - Change Feed WebSocket Client

One websocket carries every subscription, framed as Phoenix channel messages:

	{"topic": "realtime:<filter>", "event": "phx_join", "payload": {...}, "ref": "1"}

A subscription joins its own topic and waits for the phx_reply. Change
events arrive as "postgres_changes" frames on that topic. Heartbeats go to
the "phoenix" topic.

The connection is not re-established automatically. When it drops, every
open subscription ends with ErrSubscriptionClosed; the next Subscribe dials
again.
*/

package platform

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/bookswap/internal/config"
	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/metrics"
)

// Phoenix channel events.
const (
	EventJoin      = "phx_join"
	EventLeave     = "phx_leave"
	EventReply     = "phx_reply"
	EventError     = "phx_error"
	EventClose     = "phx_close"
	EventHeartbeat = "heartbeat"
	EventChanges   = "postgres_changes"

	// HeartbeatTopic is the topic heartbeats are sent on.
	HeartbeatTopic = "phoenix"
	// TopicPrefix prefixes every subscription topic.
	TopicPrefix = "realtime:"
)

// Frame is one Phoenix channel message.
type Frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

// JoinPayload is the phx_join payload.
type JoinPayload struct {
	Config      JoinConfig `json:"config"`
	AccessToken string     `json:"access_token,omitempty"`
}

// JoinConfig lists the change feeds requested by a join.
type JoinConfig struct {
	PostgresChanges []ChangeSpec `json:"postgres_changes"`
}

// ChangeSpec selects changes on one table. Filter uses column=eq.value.
type ChangeSpec struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

// ReplyPayload is the phx_reply payload.
type ReplyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response,omitempty"`
}

// ChangesPayload is the postgres_changes payload.
type ChangesPayload struct {
	Data ChangeEvent `json:"data"`
}

// FilterFromSpec converts a ChangeSpec back into a Filter. Only eq filters
// are accepted.
func FilterFromSpec(spec ChangeSpec) (Filter, error) {
	f := Filter{Table: spec.Table}
	if spec.Filter == "" {
		return f, nil
	}
	column, rest, ok := strings.Cut(spec.Filter, "=")
	if !ok {
		return Filter{}, fmt.Errorf("invalid filter %q", spec.Filter)
	}
	c, err := parseCondition(column, rest)
	if err != nil || c.Op != OpEq {
		return Filter{}, fmt.Errorf("unsupported filter %q", spec.Filter)
	}
	f.Column, f.Value = c.Column, c.Value
	return f, nil
}

// Spec renders the filter as a ChangeSpec for all event types.
func (f Filter) Spec() ChangeSpec {
	spec := ChangeSpec{Event: "*", Schema: "public", Table: f.Table}
	if f.Column != "" {
		spec.Filter = f.Column + "=eq." + f.Value
	}
	return spec
}

// RealtimeClient manages the realtime websocket and its subscriptions.
type RealtimeClient struct {
	wsURL   string
	apiKey  string
	token   func() string
	options config.RealtimeConfig

	// Connection
	connMu   sync.Mutex
	conn     *websocket.Conn
	connDone chan struct{}
	writeMu  sync.Mutex

	// Subscriptions by topic and joins awaiting a reply by ref
	subsMu  sync.Mutex
	subs    map[string]*Subscription
	pending map[string]chan ReplyPayload

	ref atomic.Uint64
	seq atomic.Uint64
	wg  sync.WaitGroup
}

// NewRealtimeClient creates a client for wsURL. token supplies the access
// token sent with each join.
func NewRealtimeClient(wsURL, apiKey string, token func() string, options config.RealtimeConfig) *RealtimeClient {
	if options.HandshakeTimeout <= 0 {
		options.HandshakeTimeout = 10 * time.Second
	}
	if options.HeartbeatInterval <= 0 {
		options.HeartbeatInterval = 25 * time.Second
	}
	if options.EventBuffer <= 0 {
		options.EventBuffer = 256
	}
	return &RealtimeClient{
		wsURL:   wsURL,
		apiKey:  apiKey,
		token:   token,
		options: options,
		subs:    make(map[string]*Subscription),
		pending: make(map[string]chan ReplyPayload),
	}
}

// Subscribe joins a channel for filter and returns once the platform has
// accepted the join.
func (c *RealtimeClient) Subscribe(ctx context.Context, filter Filter) (*Subscription, error) {
	if filter.Table == "" {
		return nil, &RemoteError{Op: "subscribe", Message: "table is required"}
	}
	if err := c.connect(ctx); err != nil {
		metrics.RealtimeSubscribeFailures.WithLabelValues(filter.Table).Inc()
		return nil, &RemoteError{Op: "subscribe", Table: filter.Table, Message: err.Error(), Err: err}
	}

	topic := TopicPrefix + filter.String() + "#" + strconv.FormatUint(c.seq.Add(1), 10)
	ref := c.nextRef()
	replyCh := make(chan ReplyPayload, 1)

	var sub *Subscription
	sub = NewSubscription(filter, c.options.EventBuffer, func() { c.leave(topic, sub) })

	c.subsMu.Lock()
	c.subs[topic] = sub
	c.pending[ref] = replyCh
	c.subsMu.Unlock()

	join := JoinPayload{
		Config:      JoinConfig{PostgresChanges: []ChangeSpec{filter.Spec()}},
		AccessToken: c.token(),
	}
	if err := c.send(topic, EventJoin, join, ref); err != nil {
		c.dropPending(ref)
		sub.Fail(err)
		metrics.RealtimeSubscribeFailures.WithLabelValues(filter.Table).Inc()
		return nil, &RemoteError{Op: "subscribe", Table: filter.Table, Message: err.Error(), Err: err}
	}

	timer := time.NewTimer(c.options.HandshakeTimeout)
	defer timer.Stop()

	var failure error
	select {
	case reply := <-replyCh:
		if reply.Status == "ok" {
			logging.Debug().Str("topic", topic).Msg("Subscription joined")
			return sub, nil
		}
		failure = &RemoteError{Op: "subscribe", Table: filter.Table, Message: replyMessage(reply)}
	case <-sub.Done():
		failure = &RemoteError{Op: "subscribe", Table: filter.Table, Message: "connection closed", Err: ErrSubscriptionClosed}
	case <-timer.C:
		failure = &RemoteError{Op: "subscribe", Table: filter.Table, Message: "join timed out"}
	case <-ctx.Done():
		failure = &RemoteError{Op: "subscribe", Table: filter.Table, Message: ctx.Err().Error(), Err: ctx.Err()}
	}

	c.dropPending(ref)
	sub.Fail(failure)
	metrics.RealtimeSubscribeFailures.WithLabelValues(filter.Table).Inc()
	return nil, failure
}

func replyMessage(reply ReplyPayload) string {
	var body struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	}
	if len(reply.Response) > 0 && json.Unmarshal(reply.Response, &body) == nil {
		if body.Reason != "" {
			return body.Reason
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return "join rejected"
}

// connect dials the websocket if it is not already open.
func (c *RealtimeClient) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		return nil
	}

	u, err := url.Parse(c.wsURL)
	if err != nil {
		return fmt.Errorf("invalid realtime url: %w", err)
	}
	q := u.Query()
	q.Set("apikey", c.apiKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		HandshakeTimeout:  c.options.HandshakeTimeout,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Debug().Err(cerr).Msg("Failed to close handshake response body")
		}
	}

	c.conn = conn
	c.connDone = make(chan struct{})
	logging.Info().Str("url", c.wsURL).Msg("Realtime connected")

	c.wg.Add(2)
	go c.listen(conn, c.connDone)
	go c.heartbeat(conn, c.connDone)
	return nil
}

// listen reads frames until the connection fails.
func (c *RealtimeClient) listen(conn *websocket.Conn, done chan struct{}) {
	defer c.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logging.Info().Msg("Realtime connection closed by platform")
				} else {
					logging.Warn().Err(err).Msg("Realtime read failed")
				}
			}
			c.dropConnection(conn)
			return
		}
		c.handleFrame(data)
	}
}

func (c *RealtimeClient) handleFrame(data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		logging.Warn().Err(err).Msg("Failed to parse realtime frame")
		return
	}

	switch frame.Event {
	case EventReply:
		var reply ReplyPayload
		if err := json.Unmarshal(frame.Payload, &reply); err != nil {
			logging.Warn().Err(err).Msg("Failed to parse realtime reply")
			return
		}
		c.subsMu.Lock()
		ch, ok := c.pending[frame.Ref]
		delete(c.pending, frame.Ref)
		c.subsMu.Unlock()
		if ok {
			ch <- reply
		}

	case EventChanges:
		var payload ChangesPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			logging.Warn().Err(err).Str("topic", frame.Topic).Msg("Failed to parse change payload")
			return
		}
		c.subsMu.Lock()
		sub := c.subs[frame.Topic]
		c.subsMu.Unlock()
		if sub != nil {
			sub.Push(payload.Data)
		}

	case EventError, EventClose:
		c.subsMu.Lock()
		sub := c.subs[frame.Topic]
		delete(c.subs, frame.Topic)
		c.subsMu.Unlock()
		if sub != nil {
			logging.Warn().Str("topic", frame.Topic).Str("event", frame.Event).Msg("Realtime channel closed by platform")
			sub.Fail(&RemoteError{Op: "subscribe", Table: sub.Filter().Table, Message: "channel closed by platform", Err: ErrSubscriptionClosed})
		}

	default:
		logging.Debug().Str("event", frame.Event).Msg("Ignoring realtime frame")
	}
}

// heartbeat keeps the connection alive until done closes.
func (c *RealtimeClient) heartbeat(conn *websocket.Conn, done chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.options.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.send(HeartbeatTopic, EventHeartbeat, struct{}{}, c.nextRef()); err != nil {
				logging.Warn().Err(err).Msg("Realtime heartbeat failed")
				c.dropConnection(conn)
				return
			}
		}
	}
}

// leave detaches sub and tells the platform. Best effort.
func (c *RealtimeClient) leave(topic string, sub *Subscription) {
	c.subsMu.Lock()
	if c.subs[topic] == sub {
		delete(c.subs, topic)
	}
	c.subsMu.Unlock()

	if err := c.send(topic, EventLeave, struct{}{}, c.nextRef()); err != nil && !errors.Is(err, errNotConnected) {
		logging.Debug().Err(err).Str("topic", topic).Msg("Failed to leave realtime channel")
	}
}

var errNotConnected = errors.New("realtime not connected")

// send writes one frame.
func (c *RealtimeClient) send(topic, event string, payload any, ref string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	data, err := json.Marshal(Frame{Topic: topic, Event: event, Payload: body, Ref: ref})
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", event, err)
	}

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return errNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(c.options.HandshakeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// dropConnection closes conn, if it is still current, and ends every
// subscription on it.
func (c *RealtimeClient) dropConnection(conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn != conn {
		c.connMu.Unlock()
		return
	}
	c.conn = nil
	close(c.connDone)
	c.connMu.Unlock()

	c.writeMu.Lock()
	if err := conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	); err != nil {
		logging.Debug().Err(err).Msg("Failed to send close message")
	}
	c.writeMu.Unlock()
	if err := conn.Close(); err != nil {
		logging.Debug().Err(err).Msg("Failed to close realtime connection")
	}

	c.subsMu.Lock()
	subs := make([]*Subscription, 0, len(c.subs))
	for topic, sub := range c.subs {
		subs = append(subs, sub)
		delete(c.subs, topic)
	}
	for ref := range c.pending {
		delete(c.pending, ref)
	}
	c.subsMu.Unlock()

	for _, sub := range subs {
		sub.Fail(&RemoteError{Op: "subscribe", Table: sub.Filter().Table, Message: "connection lost", Err: ErrSubscriptionClosed})
	}
}

// Close ends every subscription and closes the connection. The client can be
// used again afterwards; the next Subscribe dials a new connection.
func (c *RealtimeClient) Close() error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn != nil {
		c.dropConnection(conn)
	}
	c.wg.Wait()
	return nil
}

// Connected reports whether the websocket is open.
func (c *RealtimeClient) Connected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn != nil
}

func (c *RealtimeClient) nextRef() string {
	return strconv.FormatUint(c.ref.Add(1), 10)
}

func (c *RealtimeClient) dropPending(ref string) {
	c.subsMu.Lock()
	delete(c.pending, ref)
	c.subsMu.Unlock()
}
