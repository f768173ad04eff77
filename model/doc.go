// Package model defines the provider-agnostic chat capability consumed by
// conversation sessions, plus helpers around it.
//
// A Provider receives the full ordered request (optional system directive,
// prior turns, the new user turn) and returns the reply messages. Providers
// keep no dialogue state of their own; the conversation package owns
// history.
//
// Adapters live in sub-packages:
//   - model/ollama: local Ollama server (the default backend)
//   - model/openai: OpenAI or any OpenAI-compatible endpoint
//   - model/anthropic: Anthropic Messages API
//
// MockProvider answers deterministically for tests and examples, and
// Instrument wraps any Provider with Prometheus metrics and call logging.
package model
