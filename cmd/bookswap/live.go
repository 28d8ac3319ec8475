// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/models"
)

// printer writes rows it has not printed before, oldest first.
type printer[T models.Row] struct {
	out    io.Writer
	render func(T) string
	seen   map[string]bool
}

func newPrinter[T models.Row](out io.Writer, render func(T) string) *printer[T] {
	return &printer[T]{out: out, render: render, seen: map[string]bool{}}
}

func (p *printer[T]) print(items []T) {
	var fresh []T
	for _, it := range items {
		if !p.seen[it.Key()] {
			p.seen[it.Key()] = true
			fresh = append(fresh, it)
		}
	}
	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].Created().Before(fresh[j].Created()) })
	for _, it := range fresh {
		fmt.Fprintln(p.out, p.render(it))
	}
}

// follow prints the current items, then every new one as changes fires.
// Each non-empty stdin line goes to send. It returns when stdin closes or
// ctx is done.
func follow[T models.Row](ctx context.Context, in io.Reader, p *printer[T], changes <-chan struct{}, items func() []T, send func(context.Context, string) error) error {
	p.print(items())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			p.print(items())
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := send(ctx, line); err != nil {
				logging.Debug().Err(err).Msg("Send failed")
				continue
			}
			p.print(items())
		}
	}
}
