// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package unread

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/notify"
	"github.com/tomtom215/bookswap/internal/platform"
)

// RecountDelay is how long the tracker collects message changes before it
// recounts. Every change in the window costs one recount in total.
const RecountDelay = 250 * time.Millisecond

// Tracker recounts unread messages after messages change. A recount is
// three selects, and the subscription sees every message the platform lets
// the user read, so changes are batched per RecountDelay and the user's own
// new messages, which never count, are skipped.
type Tracker struct {
	gw       platform.Gateway
	counter  *Counter
	notifier notify.Notifier
	delay    time.Duration

	mu   sync.Mutex
	sub  *platform.Subscription
	gen  uint64
	live bool
}

// NewTracker creates a stopped tracker publishing into counter.
func NewTracker(gw platform.Gateway, counter *Counter, notifier notify.Notifier) *Tracker {
	return &Tracker{gw: gw, counter: counter, notifier: notify.Or(notifier), delay: RecountDelay}
}

// Counter returns the store the tracker publishes into.
func (t *Tracker) Counter() *Counter { return t.counter }

// Start counts once and subscribes to message changes. The platform only
// delivers rows the user can read, so the subscription is unfiltered.
func (t *Tracker) Start(ctx context.Context) error {
	t.Stop()
	uid, err := platform.UserID(t.gw)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.live = true
	t.mu.Unlock()

	sub, err := t.gw.Subscribe(ctx, platform.Filter{Table: models.TableMessages})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Unread count will not update live")
		t.notifier.Warn("Unread count will not update live", err)
	} else {
		t.mu.Lock()
		if t.gen != gen {
			t.mu.Unlock()
			sub.Close()
			return nil
		}
		t.sub = sub
		t.mu.Unlock()
		go t.follow(context.WithoutCancel(ctx), gen, uid, sub)
	}

	_, err = t.recount(ctx, gen)
	return err
}

func (t *Tracker) follow(ctx context.Context, gen uint64, uid string, sub *platform.Subscription) {
	var (
		timer   *time.Timer
		pending <-chan time.Time
		batched int
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	events := sub.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ownMessage(ev, uid) {
				continue
			}
			batched++
			if pending == nil {
				timer = time.NewTimer(t.delay)
				pending = timer.C
			}
		case <-pending:
			pending = nil
			logging.Debug().Int("changes", batched).Msg("Recounting unread messages")
			batched = 0
			if _, err := t.recount(ctx, gen); err != nil {
				logging.Warn().Err(err).Msg("Unread recount failed")
			}
		}
	}
}

// ownMessage reports whether ev is a message uid just sent. Undecodable
// events are not skipped.
func ownMessage(ev platform.ChangeEvent, uid string) bool {
	change, err := platform.DecodeChange[models.Message](ev)
	if err != nil {
		return false
	}
	ins, ok := change.(platform.Inserted[models.Message])
	return ok && ins.Row.SenderID == uid
}

// Recount recomputes the count now.
func (t *Tracker) Recount(ctx context.Context) (int, error) {
	t.mu.Lock()
	gen := t.gen
	t.mu.Unlock()
	return t.recount(ctx, gen)
}

func (t *Tracker) recount(ctx context.Context, gen uint64) (int, error) {
	n, err := Count(ctx, t.gw)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	current := t.gen == gen && t.live
	t.mu.Unlock()
	if current {
		t.counter.Set(n)
	}
	return n, nil
}

// Stop releases the subscription and resets the count.
func (t *Tracker) Stop() {
	t.mu.Lock()
	wasLive := t.live
	t.gen++
	t.live = false
	sub := t.sub
	t.sub = nil
	t.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
	if wasLive {
		t.counter.Set(0)
	}
}

// Count returns how many messages addressed to the signed-in user are
// unread: messages in their conversations, sent by someone else, with the
// read flag clear.
func Count(ctx context.Context, gw platform.Gateway) (int, error) {
	uid, err := platform.UserID(gw)
	if err != nil {
		return 0, err
	}

	ids := map[string]struct{}{}
	for _, column := range []string{"buyer_id", "seller_id"} {
		convs, err := platform.SelectAs[models.Conversation](ctx, gw, models.TableConversations, platform.Where(column, uid))
		if err != nil {
			return 0, err
		}
		for _, c := range convs {
			ids[c.ID] = struct{}{}
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	q := platform.All().In("conversation_id", list...).Eq("read", "false").Neq("sender_id", uid)
	msgs, err := platform.SelectAs[models.Message](ctx, gw, models.TableMessages, q)
	if err != nil {
		return 0, err
	}
	return len(msgs), nil
}
