// Package resilience protects calls to unreliable external dependencies.
//
// It combines a per-dependency circuit breaker (CLOSED/OPEN/HALF_OPEN) with
// an exponential-backoff retry loop that re-attempts only errors explicitly
// marked transient. The Guard type composes both behind a single Do call.
//
// Breaker state is shared process-wide per dependency: concurrent pipeline
// runs for unrelated devices all feed the same breaker.
package resilience
