// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/bookswap/internal/account"
)

func newSignUpCmd(flags *globalFlags) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account with --email and --password",
		Args:  cobra.NoArgs,
		RunE: run(flags, false, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			session, err := a.accounts.SignUp(ctx, account.SignUpForm{
				Email:       a.cfg.Account.Email,
				Password:    a.cfg.Account.Password,
				DisplayName: name,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed up as %s (%s)\n", session.User.Email, session.User.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newSignInCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "signin",
		Short: "Check that --email and --password sign in",
		Args:  cobra.NoArgs,
		RunE: run(flags, true, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			s, ok := a.gw.Session()
			if !ok {
				return fmt.Errorf("no session after sign in")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s, session valid until %s\n", s.User.Email, s.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		}),
	}
}

func newWhoAmICmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in profile",
		Args:  cobra.NoArgs,
		RunE: run(flags, true, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			p, err := a.accounts.MyProfile(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\t%s\n", p.ID, p.DisplayName)
			if p.Bio != "" {
				fmt.Fprintln(out, p.Bio)
			}
			return nil
		}),
	}
}

func newResetPasswordCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <email>",
		Short: "Request a password reset email",
		Args:  cobra.ExactArgs(1),
		RunE: run(flags, false, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.accounts.ResetPassword(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "If the address is registered, a reset link is on its way.")
			return nil
		}),
	}
}
