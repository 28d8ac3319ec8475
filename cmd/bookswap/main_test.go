// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/bookswap/internal/config"
	"github.com/tomtom215/bookswap/internal/emulator"
	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/models"
)

const testAnonKey = "cli-anon-key"

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

// startPlatform serves an emulator and writes a config file pointing at it.
func startPlatform(t *testing.T) string {
	t.Helper()
	emu, err := emulator.New(config.EmulatorConfig{
		Host:           "127.0.0.1",
		Port:           54321,
		AnonKey:        testAnonKey,
		JWTSecret:      strings.Repeat("s", 32),
		SessionTimeout: time.Hour,
		Bus:            emulator.BusGoChannel,
	})
	if err != nil {
		t.Fatalf("emulator.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = emu.Hub().RunWithContext(ctx) }()
	go func() { defer wg.Done(); _ = emu.Relay().Serve(ctx) }()
	<-emu.Relay().Ready()

	srv := httptest.NewServer(emu.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		wg.Wait()
		_ = emu.Close()
	})

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := fmt.Sprintf("platform:\n  url: %s\n  anon_key: %s\nlogging:\n  level: error\n", srv.URL, testAnonKey)
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// execute runs one command line and returns its stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func mustExecute(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, err := execute(t, stdin, args...)
	if err != nil {
		t.Fatalf("bookswap %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestCLI_MarketAndChat(t *testing.T) {
	cfgPath := startPlatform(t)
	seller := []string{"--config", cfgPath, "--email", "seller@bookswap.test", "--password", "hunter22"}
	buyer := []string{"--config", cfgPath, "--email", "buyer@bookswap.test", "--password", "hunter22"}
	as := func(who []string, args ...string) []string {
		return append(append([]string{}, args...), who...)
	}

	if out := mustExecute(t, "", as(seller, "signup", "--name", "Sam")...); !strings.Contains(out, "seller@bookswap.test") {
		t.Errorf("signup output = %q, want the email", out)
	}
	mustExecute(t, "", as(buyer, "signup", "--name", "Bea")...)

	out := mustExecute(t, "", as(seller, "publish", "--title", "Dune", "--author", "Frank Herbert", "--price", "9.50", "--stock", "2")...)
	listingID := strings.TrimPrefix(strings.TrimSpace(out), "Published ")
	if listingID == "" || strings.Contains(listingID, " ") {
		t.Fatalf("publish output = %q, want listing id", out)
	}

	if out := mustExecute(t, "", as(buyer, "listings", "--search", "dUnE")...); !strings.Contains(out, listingID) {
		t.Errorf("listings output = %q, want %s", out, listingID)
	}

	mustExecute(t, "", as(buyer, "favorite", listingID)...)
	if out := mustExecute(t, "", as(buyer, "favorites")...); !strings.Contains(out, "Dune") {
		t.Errorf("favorites output = %q, want Dune", out)
	}
	mustExecute(t, "", as(buyer, "favorite", listingID, "--remove")...)
	if out := mustExecute(t, "", as(buyer, "favorites")...); strings.Contains(out, "Dune") {
		t.Errorf("favorites output = %q, want Dune removed", out)
	}

	if out := mustExecute(t, "is it still available?\n", as(buyer, "chat", "start", listingID)...); !strings.Contains(out, "you: is it still available?") {
		t.Errorf("chat output = %q, want sent message", out)
	}
	if out := mustExecute(t, "", as(seller, "unread")...); strings.TrimSpace(out) != "1" {
		t.Errorf("unread = %q, want 1", out)
	}
	if out := mustExecute(t, "", as(seller, "chat", "inbox")...); !strings.Contains(out, "Bea") || !strings.Contains(out, "is it still available?") {
		t.Errorf("inbox output = %q, want Bea and the last message", out)
	}
}

func TestCLI_CommunityWall(t *testing.T) {
	cfgPath := startPlatform(t)
	user := []string{"--config", cfgPath, "--email", "reader@bookswap.test", "--password", "hunter22"}
	as := func(args ...string) []string { return append(append([]string{}, args...), user...) }

	mustExecute(t, "", as("signup", "--name", "Rae")...)
	out := mustExecute(t, "", as("community", "create", "--name", "Sci-fi club")...)
	id := strings.TrimPrefix(strings.TrimSpace(out), "Created ")

	if out := mustExecute(t, "", as("community", "list", "--joined")...); !strings.Contains(out, "Sci-fi club") {
		t.Errorf("joined communities = %q, want the new community", out)
	}
	if out := mustExecute(t, "first!\n\nsecond\n", as("community", "wall", id)...); !strings.Contains(out, "Rae: first!") || !strings.Contains(out, "Rae: second") {
		t.Errorf("wall output = %q, want both posts", out)
	}
}

func TestCLI_RequiresCredentials(t *testing.T) {
	cfgPath := startPlatform(t)
	t.Setenv("BOOKSWAP_EMAIL", "")
	t.Setenv("BOOKSWAP_PASSWORD", "")

	_, err := execute(t, "", "favorites", "--config", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "--email") {
		t.Errorf("favorites without credentials error = %v, want a hint about --email", err)
	}
}

func TestPrinter_OldestFirstOnce(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := newPrinter(&buf, func(m models.Message) string { return m.Content })
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p.print([]models.Message{
		{ID: "b", Content: "second", CreatedAt: base.Add(time.Minute)},
		{ID: "a", Content: "first", CreatedAt: base},
	})
	p.print([]models.Message{
		{ID: "a", Content: "first", CreatedAt: base},
		{ID: "c", Content: "third", CreatedAt: base.Add(2 * time.Minute)},
	})

	if got, want := buf.String(), "first\nsecond\nthird\n"; got != want {
		t.Errorf("printed %q, want %q", got, want)
	}
}
