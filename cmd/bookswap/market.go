// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomtom215/bookswap/internal/market"
	"github.com/tomtom215/bookswap/internal/models"
)

func printListings(w io.Writer, listings []models.Listing) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tPRICE\tSTOCK\tSTATUS")
	for _, l := range listings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d\t%s\n", l.ID, l.Title, l.Author, l.Price, l.Stock, l.Status)
	}
	return tw.Flush()
}

func newListingsCmd(flags *globalFlags) *cobra.Command {
	var (
		opts market.BrowseOptions
		mine bool
	)
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Browse active listings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(flags, mine, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
				svc := market.NewService(a.gw, a.cfg.Storage)
				var (
					listings []models.Listing
					err      error
				)
				if mine {
					listings, err = svc.Mine(ctx)
				} else {
					listings, err = svc.Browse(ctx, opts)
				}
				if err != nil {
					return err
				}
				return printListings(cmd.OutOrStdout(), listings)
			})(cmd, args)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Category, "category", "", "only this category")
	f.StringVar(&opts.Search, "search", "", "title contains (case-insensitive)")
	f.IntVar(&opts.Limit, "limit", 0, "maximum rows")
	f.BoolVar(&mine, "mine", false, "your own listings in every status")
	return cmd
}

func newPublishCmd(flags *globalFlags) *cobra.Command {
	var (
		form  market.ListingForm
		image string
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a listing",
		Args:  cobra.NoArgs,
		RunE: run(flags, true, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			file, err := readImage(image)
			if err != nil {
				return err
			}
			l, err := market.NewService(a.gw, a.cfg.Storage).Publish(ctx, form, file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s\n", l.ID)
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&form.Title, "title", "", "book title")
	f.StringVar(&form.Author, "author", "", "book author")
	f.StringVar(&form.Description, "description", "", "description")
	f.StringVar(&form.Category, "category", "", "category")
	f.StringVar(&form.Condition, "condition", "", "new, like_new, good, fair or poor")
	f.StringVar(&form.Price, "price", "", "asking price")
	f.StringVar(&form.Stock, "stock", "1", "copies available")
	f.StringVar(&image, "image", "", "cover image file")
	return cmd
}

func newFavoriteCmd(flags *globalFlags) *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "favorite <listing-id>",
		Short: "Favorite a listing, or unfavorite it with --remove",
		Args:  cobra.ExactArgs(1),
		RunE: run(flags, true, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			return market.NewService(a.gw, a.cfg.Storage).SetFavorite(ctx, args[0], !remove)
		}),
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "remove the favorite")
	return cmd
}

func newFavoritesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "favorites",
		Short: "List favorited listings",
		Args:  cobra.NoArgs,
		RunE: run(flags, true, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			listings, err := market.NewService(a.gw, a.cfg.Storage).Favorites(ctx)
			if err != nil {
				return err
			}
			return printListings(cmd.OutOrStdout(), listings)
		}),
	}
}
