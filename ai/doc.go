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


// Package ai provides abstractions for the external AI services.
//
// Two interfaces carry the pipelines: Embedder turns text into unit-length
// vectors and Generator composes grounded answers from assembled context.
// Provider aggregates them for initialization and lifecycle management.
//
// # Implementation Packages
//
//   - ai/openai: production implementation over OpenAI-compatible APIs
//   - ai/mock: deterministic doubles for tests and offline runs
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// INTERFACE types to enforce abstraction and prevent accidental coupling to
// a concrete implementation:
//
//	provider, err := openai.NewProvider(config)  // returns ai.Provider
//
// Mock constructors return CONCRETE types so tests can inject behavior and
// assert on call counts:
//
//	emb := mock.NewEmbedder(8)      // returns *mock.Embedder
//	emb.FailNext(3, someErr)        // needs the concrete type
//
// # Resilience
//
// GuardedEmbedder and GuardedGenerator decorate the interfaces with the
// per-dependency circuit breaker and retry policy from the resilience
// package. Pipelines always hold the guarded form; nothing below them
// re-checks breaker state.
package ai
