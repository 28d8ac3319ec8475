// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/bookswap/internal/config"
	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/metrics"
	"github.com/tomtom215/bookswap/internal/models"
)

// Ensure BreakerGateway implements Gateway
var _ Gateway = (*BreakerGateway)(nil)

// BreakerGateway fails fast while the platform is unavailable. It never
// retries: a rejected call returns a RemoteError immediately and the user
// re-triggers the action.
//
// Only transport failures and 5xx responses count against the platform.
// Auth errors, validation rejections and other 4xx responses pass through
// without tripping the breaker.
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// NewBreakerGateway wraps next with a circuit breaker.
func NewBreakerGateway(next Gateway, cfg config.BreakerConfig) *BreakerGateway {
	name := "platform-gateway"

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= threshold
			if trip {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return trip
		},

		IsSuccessful: countsAsSuccess,

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerGateway{next: next, cb: cb, name: name}
}

// countsAsSuccess reports whether err should not count as a platform failure.
func countsAsSuccess(err error) bool {
	if err == nil || IsAuth(err) || errors.Is(err, ErrNotFound) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var re *RemoteError
	if errors.As(err, &re) && re.Status >= 400 && re.Status < http.StatusInternalServerError {
		return true
	}
	return false
}

// State returns the breaker state as closed, half-open or open.
func (b *BreakerGateway) State() string {
	return stateToString(b.cb.State())
}

// execute runs fn through the breaker.
func (b *BreakerGateway) execute(op, table string, fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			logging.Warn().Err(err).Str("op", op).Str("table", table).Msg("[CIRCUIT BREAKER] Request rejected")
			return nil, &RemoteError{Op: op, Table: table, Message: "platform unavailable, try again shortly", Err: err}
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return result, nil
}

// castResult type-asserts a breaker result.
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Select runs Select through the breaker.
func (b *BreakerGateway) Select(ctx context.Context, table string, q Query) (json.RawMessage, error) {
	return castResult[json.RawMessage](b.execute("select", table, func() (any, error) {
		return b.next.Select(ctx, table, q)
	}))
}

// Insert runs Insert through the breaker.
func (b *BreakerGateway) Insert(ctx context.Context, table string, row any) (json.RawMessage, error) {
	return castResult[json.RawMessage](b.execute("insert", table, func() (any, error) {
		return b.next.Insert(ctx, table, row)
	}))
}

// Update runs Update through the breaker.
func (b *BreakerGateway) Update(ctx context.Context, table string, q Query, patch any) (json.RawMessage, error) {
	return castResult[json.RawMessage](b.execute("update", table, func() (any, error) {
		return b.next.Update(ctx, table, q, patch)
	}))
}

// Delete runs Delete through the breaker.
func (b *BreakerGateway) Delete(ctx context.Context, table string, q Query) error {
	_, err := b.execute("delete", table, func() (any, error) {
		return nil, b.next.Delete(ctx, table, q)
	})
	return err
}

// SignUp runs SignUp through the breaker.
func (b *BreakerGateway) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	return castResult[*models.Session](b.execute("signup", "", func() (any, error) {
		return b.next.SignUp(ctx, email, password)
	}))
}

// SignIn runs SignIn through the breaker.
func (b *BreakerGateway) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	return castResult[*models.Session](b.execute("signin", "", func() (any, error) {
		return b.next.SignIn(ctx, email, password)
	}))
}

// SignOut is not guarded; the local session must always be cleared.
func (b *BreakerGateway) SignOut(ctx context.Context) error {
	return b.next.SignOut(ctx)
}

// ResetPassword runs ResetPassword through the breaker.
func (b *BreakerGateway) ResetPassword(ctx context.Context, email string) error {
	_, err := b.execute("recover", "", func() (any, error) {
		return nil, b.next.ResetPassword(ctx, email)
	})
	return err
}

// Session never touches the platform.
func (b *BreakerGateway) Session() (*models.Session, bool) {
	return b.next.Session()
}

// CurrentUser runs CurrentUser through the breaker.
func (b *BreakerGateway) CurrentUser(ctx context.Context) (*models.User, error) {
	return castResult[*models.User](b.execute("user", "", func() (any, error) {
		return b.next.CurrentUser(ctx)
	}))
}

// Upload runs Upload through the breaker.
func (b *BreakerGateway) Upload(ctx context.Context, bucket, key, contentType string, data []byte) (string, error) {
	return castResult[string](b.execute("upload", bucket, func() (any, error) {
		return b.next.Upload(ctx, bucket, key, contentType, data)
	}))
}

// PublicURL never touches the platform.
func (b *BreakerGateway) PublicURL(bucket, key string) string {
	return b.next.PublicURL(bucket, key)
}

// Subscribe runs Subscribe through the breaker.
func (b *BreakerGateway) Subscribe(ctx context.Context, filter Filter) (*Subscription, error) {
	return castResult[*Subscription](b.execute("subscribe", filter.Table, func() (any, error) {
		return b.next.Subscribe(ctx, filter)
	}))
}
