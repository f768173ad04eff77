package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/ifai/core"
)

// Info contains metadata about a provider implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "ollama", "openai", "anthropic", "mock", ...
}

// Provider is a stateless chat-completion capability. Given the ordered list
// of role-tagged messages it returns one or more role-tagged messages, or
// fails. Implementations must be safe for concurrent use.
type Provider interface {
	Chat(ctx context.Context, msgs []core.ChatMessage) ([]core.ChatMessage, error)

	// Info returns information about the provider implementation.
	Info() Info
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, msgs []core.ChatMessage) ([]core.ChatMessage, error)

// Chat calls f(ctx, msgs).
func (f ProviderFunc) Chat(ctx context.Context, msgs []core.ChatMessage) ([]core.ChatMessage, error) {
	return f(ctx, msgs)
}

// Info reports a generic function provider.
func (ProviderFunc) Info() Info { return Info{Name: "func", Provider: "func"} }

// LastUserText returns the text of the last user message in msgs.
func LastUserText(msgs []core.ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == core.RoleUser {
			return msgs[i].Text
		}
	}
	return ""
}

// MockProvider is a lightweight in‑memory Provider useful for tests & examples.
type MockProvider struct {
	info Info

	mu        sync.RWMutex
	responses map[string]string
}

// NewMockProvider constructs a MockProvider.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for a user prompt.
func (m *MockProvider) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Chat implements Provider. It answers the last user message with the
// registered response or an echo of the prompt.
func (m *MockProvider) Chat(ctx context.Context, msgs []core.ChatMessage) ([]core.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	input := LastUserText(msgs)

	m.mu.RLock()
	full, ok := m.responses[input]
	m.mu.RUnlock()
	if !ok {
		full = fmt.Sprintf("Mock response to: %s", input)
	}
	return []core.ChatMessage{core.AssistantMessage(full)}, nil
}

// Info implements Provider.
func (m *MockProvider) Info() Info { return m.info }
