// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package services

import "context"

// ContextHub is satisfied by *websocket.Hub.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// RealtimeHubService supervises the realtime hub. RunWithContext already
// has the Serve shape; the wrapper names it for supervisor logs.
type RealtimeHubService struct {
	hub ContextHub
}

// NewRealtimeHubService wraps hub.
func NewRealtimeHubService(hub ContextHub) *RealtimeHubService {
	return &RealtimeHubService{hub: hub}
}

// Serve implements suture.Service.
func (s *RealtimeHubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

func (s *RealtimeHubService) String() string { return "realtime-hub" }
