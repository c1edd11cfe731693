// Package openai implements the ai interfaces against OpenAI-compatible
// APIs (OpenAI itself, Ollama, LocalAI, vLLM).
//
// Dependency failures are classified before they leave this package: rate
// limits, 5xx responses, and timeouts come back marked transient so the
// resilience layer retries them; auth and validation failures stay
// permanent.
package openai
