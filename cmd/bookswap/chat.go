// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/bookswap/internal/chat"
	"github.com/tomtom215/bookswap/internal/market"
	"github.com/tomtom215/bookswap/internal/models"
)

func newChatCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Direct conversations with buyers and sellers",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "inbox",
			Short: "List conversations, most recent first",
			Args:  cobra.NoArgs,
			RunE: run(flags, true, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
				entries, err := chat.NewService(a.gw, a.profiles).Inbox(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tWITH\tUNREAD\tLAST")
				for _, e := range entries {
					last := ""
					if e.LastMessage != nil {
						last = e.LastMessage.Content
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.Conversation.ID, e.Counterpart.DisplayName, e.Unread, last)
				}
				return tw.Flush()
			}),
		},
		&cobra.Command{
			Use:   "start <listing-id>",
			Short: "Open (or create) the conversation about a listing and follow it",
			Args:  cobra.ExactArgs(1),
			RunE: run(flags, true, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
				listing, err := market.NewService(a.gw, a.cfg.Storage).Get(ctx, args[0])
				if err != nil {
					return err
				}
				conv, err := chat.NewService(a.gw, a.profiles).LookupOrCreate(ctx, listing)
				if err != nil {
					return err
				}
				return followThread(ctx, a, cmd, conv)
			}),
		},
		&cobra.Command{
			Use:   "open <conversation-id>",
			Short: "Follow a conversation; each stdin line is sent",
			Args:  cobra.ExactArgs(1),
			RunE: run(flags, true, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
				conv, err := chat.NewService(a.gw, a.profiles).Get(ctx, args[0])
				if err != nil {
					return err
				}
				return followThread(ctx, a, cmd, conv)
			}),
		},
	)
	return cmd
}

func followThread(ctx context.Context, a *app, cmd *cobra.Command, conv models.Conversation) error {
	thread := chat.NewThread(a.gw, a.notifier)
	if err := thread.Mount(ctx, conv); err != nil {
		return err
	}
	defer thread.Unmount()

	s, _ := a.gw.Session()
	me := s.User.ID
	other := a.profiles.DisplayName(ctx, conv.Counterpart(me))
	fmt.Fprintf(cmd.ErrOrStderr(), "Conversation %s with %s\n", conv.ID, other)

	p := newPrinter(cmd.OutOrStdout(), func(m models.Message) string {
		who := other
		if m.SenderID == me {
			who = "you"
		}
		return fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format(time.Kitchen), who, m.Content)
	})
	return follow(ctx, cmd.InOrStdin(), p, thread.Changes(), thread.Messages, func(ctx context.Context, text string) error {
		_, err := thread.Send(ctx, text)
		return err
	})
}
