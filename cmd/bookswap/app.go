// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/bookswap/internal/account"
	"github.com/tomtom215/bookswap/internal/config"
	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/notify"
	"github.com/tomtom215/bookswap/internal/platform"
)

// profileTTL bounds how long display names are reused within one run.
const profileTTL = 5 * time.Minute

// app holds the wiring shared by every subcommand.
type app struct {
	cfg      *config.Config
	client   *platform.Client
	gw       platform.Gateway
	profiles *account.Directory
	accounts *account.Service
	notifier notify.Notifier
}

type globalFlags struct {
	configPath string
	email      string
	password   string
	verbose    bool
}

func newApp(flags *globalFlags) (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if flags.verbose {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: "console", Output: os.Stderr})

	if flags.email != "" {
		cfg.Account.Email = flags.email
	}
	if flags.password != "" {
		cfg.Account.Password = flags.password
	}

	client := platform.NewClient(cfg.Platform, cfg.Realtime)
	var gw platform.Gateway = client
	if cfg.Breaker.Enabled {
		gw = platform.NewBreakerGateway(client, cfg.Breaker)
	}
	profiles := account.NewDirectory(gw, profileTTL)

	return &app{
		cfg:      cfg,
		client:   client,
		gw:       gw,
		profiles: profiles,
		accounts: account.NewService(gw, cfg.Storage, profiles),
		notifier: notify.NewLogNotifier(),
	}, nil
}

// signIn opens a session with the configured credentials.
func (a *app) signIn(ctx context.Context) error {
	if a.cfg.Account.Email == "" || a.cfg.Account.Password == "" {
		return fmt.Errorf("set --email and --password (or BOOKSWAP_EMAIL and BOOKSWAP_PASSWORD)")
	}
	_, err := a.accounts.SignIn(ctx, account.SignInForm{
		Email:    a.cfg.Account.Email,
		Password: a.cfg.Account.Password,
	})
	return err
}

func (a *app) close() {
	a.profiles.Close()
	if err := a.client.Close(); err != nil {
		logging.Debug().Err(err).Msg("Closing platform client")
	}
}

// run builds the app, optionally signs in and calls fn.
func run(flags *globalFlags, signIn bool, fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		defer a.close()

		// One correlation id per invocation ties its remote calls together.
		ctx := logging.ContextWithNewCorrelationID(cmd.Context())
		ctx = logging.ContextWithScreen(ctx, cmd.Name())
		if signIn {
			if err := a.signIn(ctx); err != nil {
				return err
			}
		}
		return fn(ctx, a, cmd, args)
	}
}

// readImage loads an image file for upload. An empty path means no image.
func readImage(path string) (*platform.File, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return &platform.File{
		Name:        filepath.Base(path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "bookswap",
		Short:         "Used book marketplace and community chat",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default: search standard paths)")
	pf.StringVar(&flags.email, "email", "", "account email (overrides BOOKSWAP_EMAIL)")
	pf.StringVar(&flags.password, "password", "", "account password (overrides BOOKSWAP_PASSWORD)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newSignUpCmd(flags),
		newSignInCmd(flags),
		newWhoAmICmd(flags),
		newResetPasswordCmd(flags),
		newListingsCmd(flags),
		newPublishCmd(flags),
		newFavoriteCmd(flags),
		newFavoritesCmd(flags),
		newChatCmd(flags),
		newCommunityCmd(flags),
		newUnreadCmd(flags),
	)
	return root
}
