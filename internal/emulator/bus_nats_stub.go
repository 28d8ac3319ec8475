// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

//go:build !nats

package emulator

import (
	"errors"

	"github.com/ThreeDotsLabs/watermill"
)

// ErrNATSNotBuilt is returned when the NATS bus is selected in a build
// without the nats tag.
var ErrNATSNotBuilt = errors.New("nats bus requires building with -tags nats")

func newNATSBus(string, watermill.LoggerAdapter) (*Bus, error) {
	return nil, ErrNATSNotBuilt
}
