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

	"github.com/tomtom215/bookswap/internal/community"
	"github.com/tomtom215/bookswap/internal/models"
)

func newCommunityCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "community",
		Aliases: []string{"communities"},
		Short:   "Reading communities and their walls",
	}

	var joined bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List communities",
		Args:  cobra.NoArgs,
		RunE: run(flags, true, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			svc := community.NewService(a.gw, a.cfg.Storage, a.profiles)
			var (
				rows []models.Community
				err  error
			)
			if joined {
				rows, err = svc.Joined(ctx)
			} else {
				rows, err = svc.List(ctx)
			}
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
			for _, c := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.Description)
			}
			return tw.Flush()
		}),
	}
	list.Flags().BoolVar(&joined, "joined", false, "only communities you belong to")

	var (
		form  community.Form
		image string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a community; you become its first admin",
		Args:  cobra.NoArgs,
		RunE: run(flags, true, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			file, err := readImage(image)
			if err != nil {
				return err
			}
			c, err := community.NewService(a.gw, a.cfg.Storage, a.profiles).Create(ctx, form, file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", c.ID)
			return nil
		}),
	}
	create.Flags().StringVar(&form.Name, "name", "", "community name")
	create.Flags().StringVar(&form.Description, "description", "", "description")
	create.Flags().StringVar(&image, "image", "", "cover image file")

	join := &cobra.Command{
		Use:   "join <community-id>",
		Short: "Join a community",
		Args:  cobra.ExactArgs(1),
		RunE: run(flags, true, func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			return community.NewService(a.gw, a.cfg.Storage, a.profiles).Join(ctx, args[0])
		}),
	}
	leave := &cobra.Command{
		Use:   "leave <community-id>",
		Short: "Leave a community",
		Args:  cobra.ExactArgs(1),
		RunE: run(flags, true, func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			return community.NewService(a.gw, a.cfg.Storage, a.profiles).Leave(ctx, args[0])
		}),
	}
	wall := &cobra.Command{
		Use:   "wall <community-id>",
		Short: "Follow a community wall; each stdin line is posted",
		Args:  cobra.ExactArgs(1),
		RunE: run(flags, true, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			w := community.NewWall(a.gw, a.cfg.Storage, a.profiles, a.notifier)
			if err := w.Mount(ctx, args[0]); err != nil {
				return err
			}
			defer w.Unmount()

			if c, ok := w.Community(); ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s (%d members)\n", c.Name, len(w.Members()))
			}
			p := newPrinter(cmd.OutOrStdout(), func(post models.CommunityPost) string {
				text := post.Content
				if post.ImageURL != "" {
					text += " [" + post.ImageURL + "]"
				}
				return fmt.Sprintf("[%s] %s: %s", post.CreatedAt.Local().Format(time.Kitchen), post.AuthorName, text)
			})
			return follow(ctx, cmd.InOrStdin(), p, w.Changes(), w.Posts, func(ctx context.Context, text string) error {
				_, err := w.Post(ctx, text, nil)
				return err
			})
		}),
	}

	cmd.AddCommand(list, create, join, leave, wall)
	return cmd
}
