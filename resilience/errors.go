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

import "errors"

var (
	// ErrUnavailable indicates the circuit is open and the call was not
	// attempted. Callers map this to a dependency-unavailable failure.
	ErrUnavailable = errors.New("dependency unavailable: circuit open")

	// ErrInvalidMaxAttempts indicates a non-positive attempt budget.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be > 0")
)

// transientError marks an error as retryable.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as a transient failure (rate limit, 5xx, timeout) so
// the retry loop will re-attempt it. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or anything it wraps) was marked
// transient. Unmarked errors are treated as permanent and never retried.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
