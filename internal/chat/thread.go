// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/tomtom215/bookswap/internal/feed"
	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/notify"
	"github.com/tomtom215/bookswap/internal/platform"
	"github.com/tomtom215/bookswap/internal/validation"
)

// MessageForm is the compose box.
type MessageForm struct {
	Content string `json:"content" validate:"notblank,max=4000"`
}

// Thread is the controller for one open conversation. Messages are shown
// oldest first.
type Thread struct {
	gw       platform.Gateway
	notifier notify.Notifier
	messages *feed.Reconciler[models.Message]

	mu   sync.Mutex
	conv models.Conversation
	me   string
}

// NewThread creates an unmounted thread controller.
func NewThread(gw platform.Gateway, notifier notify.Notifier) *Thread {
	notifier = notify.Or(notifier)
	return &Thread{
		gw:       gw,
		notifier: notifier,
		messages: feed.New[models.Message](gw, feed.Options[models.Message]{
			Name:     models.TableMessages,
			Order:    feed.Ascending,
			Notifier: notifier,
		}),
	}
}

// Mount shows conv. Any previously mounted conversation is released first.
// Counterpart messages are marked read once the baseline is in.
func (t *Thread) Mount(ctx context.Context, conv models.Conversation) error {
	uid, err := platform.UserID(t.gw)
	if err != nil {
		return err
	}
	if !conv.Has(uid) {
		return platform.ErrNotFound
	}

	t.mu.Lock()
	t.conv, t.me = conv, uid
	t.mu.Unlock()

	filter := platform.Filter{Table: models.TableMessages, Column: "conversation_id", Value: conv.ID}
	err = t.messages.Start(ctx, filter, func(ctx context.Context) ([]models.Message, error) {
		return platform.SelectAs[models.Message](ctx, t.gw, models.TableMessages,
			platform.Where("conversation_id", conv.ID).OrderBy("created_at", false))
	})
	if err != nil {
		t.notifier.Alert("Could not load messages", err)
		return err
	}

	t.MarkRead(ctx)
	return nil
}

// Unmount releases the subscription. Results of calls still in flight are
// discarded.
func (t *Thread) Unmount() {
	t.messages.Stop()
}

// Conversation returns the mounted conversation.
func (t *Thread) Conversation() models.Conversation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conv
}

// Messages returns the thread oldest first.
func (t *Thread) Messages() []models.Message { return t.messages.Items() }

// Live reports whether the thread is receiving changes.
func (t *Thread) Live() bool { return t.messages.Live() }

// Changes is signalled after the message list changes.
func (t *Thread) Changes() <-chan struct{} { return t.messages.Changes() }

// Send validates and inserts a message, then shows it. The message's own
// INSERT event is deduplicated by id.
func (t *Thread) Send(ctx context.Context, text string) (models.Message, error) {
	form := MessageForm{Content: text}
	if verr := validation.ValidateStruct(form); verr != nil {
		return models.Message{}, verr
	}

	t.mu.Lock()
	conv, me := t.conv, t.me
	t.mu.Unlock()
	if !t.messages.Mounted() {
		return models.Message{}, feed.ErrNotMounted
	}

	msg, err := platform.InsertAs[models.Message](ctx, t.gw, models.TableMessages, models.NewMessage{
		ConversationID: conv.ID,
		SenderID:       me,
		Content:        strings.TrimSpace(form.Content),
	})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("conversation_id", conv.ID).Msg("Send failed")
		t.notifier.Alert("Message not sent", err)
		return models.Message{}, err
	}

	if _, err := t.messages.Add(msg); err != nil {
		logging.Ctx(ctx).Debug().Str("message_id", msg.ID).Msg("Thread unmounted before send completed")
	}
	return msg, nil
}

// MarkRead flags the counterpart's unread messages as read. Failure is a
// warning; the messages simply stay unread. Rows returned after the thread
// is unmounted or remounted are discarded.
func (t *Thread) MarkRead(ctx context.Context) int {
	gen := t.messages.Generation()
	t.mu.Lock()
	conv, me := t.conv, t.me
	t.mu.Unlock()

	var pending bool
	for _, m := range t.messages.Items() {
		if !m.Read && m.SenderID != me {
			pending = true
			break
		}
	}
	if !pending {
		return 0
	}

	q := platform.Where("conversation_id", conv.ID).Neq("sender_id", me).Eq("read", "false")
	updated, err := platform.UpdateAs[models.Message](ctx, t.gw, models.TableMessages, q, map[string]any{"read": true})
	if t.messages.Generation() != gen {
		logging.Ctx(ctx).Debug().Err(err).Str("conversation_id", conv.ID).Msg("Thread changed before mark read resolved")
		return len(updated)
	}
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("conversation_id", conv.ID).Msg("Mark read failed")
		t.notifier.Warn("Could not mark messages as read", err)
		return 0
	}
	for _, m := range updated {
		t.messages.UpdateAt(gen, m.ID, func(models.Message) models.Message { return m })
	}
	return len(updated)
}
