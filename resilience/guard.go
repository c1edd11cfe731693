// Copyright 2025 Sableridge Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Default guard tuning, matched to flaky embedding/generation backends.
const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 60 * time.Second
	DefaultMaxAttempts      = 4
	DefaultBaseDelay        = time.Second
)

// Guard wraps all calls to one external dependency with a shared circuit
// breaker and a transient-failure retry loop. One Guard instance exists per
// dependency for the whole process.
type Guard struct {
	name        string
	breaker     *Breaker
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithBreaker replaces the default breaker.
func WithBreaker(b *Breaker) GuardOption {
	return func(g *Guard) {
		g.breaker = b
	}
}

// WithMaxAttempts sets the per-call attempt budget.
func WithMaxAttempts(n int) GuardOption {
	return func(g *Guard) {
		g.maxAttempts = n
	}
}

// WithBaseDelay sets the initial backoff delay.
func WithBaseDelay(d time.Duration) GuardOption {
	return func(g *Guard) {
		g.baseDelay = d
	}
}

// WithLogger sets the guard's logger.
func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

// NewGuard creates a Guard for the named dependency with default tuning.
func NewGuard(name string, opts ...GuardOption) *Guard {
	g := &Guard{
		name:        name,
		breaker:     NewBreaker(DefaultFailureThreshold, DefaultCooldown),
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		logger:      slog.Default().With("component", "guard", "dependency", name),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do runs operation under the breaker and retry policy. In OPEN state it
// fast-fails with ErrUnavailable without invoking operation. A HALF_OPEN
// probe gets exactly one attempt. Call outcomes feed the shared breaker;
// caller-side cancellation does not count against the dependency, and a
// canceled probe releases its slot so the breaker can probe again later.
func (g *Guard) Do(ctx context.Context, operation func() error) error {
	probe, err := g.breaker.Allow()
	if err != nil {
		g.logger.Warn("fast-failing call, circuit open")
		return fmt.Errorf("%s: %w", g.name, err)
	}

	attempts := g.maxAttempts
	if probe {
		attempts = 1
		g.logger.Info("allowing probe call", "state", g.breaker.State())
	}

	err = RetryWithBackoff(ctx, operation, attempts, g.baseDelay)
	if err == nil {
		g.breaker.RecordSuccess()
		return nil
	}

	if errors.Is(err, context.Canceled) {
		// A canceled caller says nothing about the dependency, but an
		// admitted probe must release its slot or the breaker would
		// stay HALF_OPEN and fast-fail every later call.
		g.breaker.Abort()
	} else {
		g.breaker.RecordFailure()
	}
	g.logger.Warn("call failed", "state", g.breaker.State(), "error", err)
	return fmt.Errorf("%s: %w", g.name, err)
}

// State exposes the underlying breaker state.
func (g *Guard) State() State {
	return g.breaker.State()
}
