// Package mock provides deterministic test doubles for the ai interfaces.
//
// The embedder hashes text into stable unit vectors so similarity ordering
// is reproducible without a model; the generator returns canned answers.
// Both support scripted failures via FailNext for resilience tests.
package mock
