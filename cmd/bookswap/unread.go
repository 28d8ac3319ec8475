// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/bookswap/internal/unread"
)

func newUnreadCmd(flags *globalFlags) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "unread",
		Short: "Show unread message count",
		Args:  cobra.NoArgs,
		RunE: run(flags, true, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if !watch {
				n, err := unread.Count(ctx, a.gw)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, n)
				return nil
			}

			tracker := unread.NewTracker(a.gw, unread.NewCounter(), a.notifier)
			if err := tracker.Start(ctx); err != nil {
				return err
			}
			defer tracker.Stop()

			counts, cancel := tracker.Counter().Watch()
			defer cancel()
			for {
				select {
				case <-ctx.Done():
					return nil
				case n := <-counts:
					fmt.Fprintln(out, n)
				}
			}
		}),
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "print the count again whenever it changes")
	return cmd
}
