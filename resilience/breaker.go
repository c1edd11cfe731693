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
	"sync"
	"time"
)

// State is the circuit breaker state.
type State int

const (
	// StateClosed lets calls pass through.
	StateClosed State = iota
	// StateOpen fast-fails calls without attempting the dependency.
	StateOpen
	// StateHalfOpen lets a single probe call through after the cooldown.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Breaker is a per-dependency circuit breaker. It is shared across all
// pipeline runs that call the same dependency, so every method holds the
// mutex for its whole read-modify-write.
type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	threshold int
	cooldown  time.Duration
	openedAt  time.Time
	probing   bool
	now       func() time.Time
}

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// WithClock replaces the breaker's time source.
func WithClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) {
		b.now = now
	}
}

// NewBreaker creates a closed breaker that opens after threshold
// consecutive failures and allows a probe after cooldown.
func NewBreaker(threshold int, cooldown time.Duration, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		state:     StateClosed,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether a call may proceed. In OPEN it returns
// ErrUnavailable until the cooldown elapses, then transitions to HALF_OPEN
// and admits exactly one probe; concurrent callers during the probe are
// rejected. probe is true when the admitted call is the HALF_OPEN probe,
// which must not be retried internally.
func (b *Breaker) Allow() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false, ErrUnavailable
		}
		b.state = StateHalfOpen
		b.probing = true
		return true, nil
	case StateHalfOpen:
		if b.probing {
			return false, ErrUnavailable
		}
		b.probing = true
		return true, nil
	}
	return false, nil
}

// RecordSuccess resets the breaker. A successful probe closes it and zeroes
// the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.probing = false
}

// Abort releases an admitted probe without recording an outcome. The
// breaker reopens with a fresh cooldown, so a probe abandoned by caller
// cancellation does not hold the slot forever. Outside an active probe
// this is a no-op.
func (b *Breaker) Abort() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.probing {
		b.state = StateOpen
		b.openedAt = b.now()
		b.probing = false
	}
}

// RecordFailure counts a failed call. A failed probe reopens immediately;
// in CLOSED the breaker opens once the consecutive-failure threshold is
// reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.openedAt = b.now()
		b.probing = false
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// State returns the current state. For observation only; Allow is the
// authoritative gate.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
