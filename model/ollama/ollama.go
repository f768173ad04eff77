// Package ollama provides a model.Provider backed by a local Ollama server
// through its native chat API.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hupe1980/ifai/core"
	"github.com/hupe1980/ifai/model"
	"github.com/ollama/ollama/api"
)

const (
	// DefaultEndpoint is where a locally installed Ollama listens.
	DefaultEndpoint = "http://localhost:11434"
	// DefaultModel is a small model that runs on modest hardware.
	DefaultModel = "qwen2.5:1.5b"
	// DefaultTimeout bounds one chat round trip.
	DefaultTimeout = 120 * time.Second
)

// Options configures the Ollama provider.
type Options struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
	// Temperature is sent as a model option when positive.
	Temperature float64
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// chatter is the subset of *api.Client the provider uses.
type chatter interface {
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
}

// Provider talks to Ollama's /api/chat endpoint without streaming.
type Provider struct {
	client chatter
	opts   Options
}

// New creates a provider for opts.Endpoint (default DefaultEndpoint). A
// trailing "/v1" is stripped since the native API lives at the root.
func New(optFns ...func(o *Options)) (*Provider, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	base := strings.TrimSuffix(strings.TrimSuffix(opts.Endpoint, "/"), "/v1")
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse ollama endpoint %q: %w", opts.Endpoint, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse ollama endpoint %q: missing scheme or host", opts.Endpoint)
	}
	opts.Endpoint = base

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Provider{client: api.NewClient(parsed, httpClient), opts: opts}, nil
}

// NewFromClient creates a provider around an existing client.
func NewFromClient(client *api.Client, optFns ...func(o *Options)) *Provider {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Endpoint: DefaultEndpoint,
		Model:    DefaultModel,
		Timeout:  DefaultTimeout,
	}
}

// Chat implements model.Provider.
func (p *Provider) Chat(ctx context.Context, msgs []core.ChatMessage) ([]core.ChatMessage, error) {
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	stream := false
	req := &api.ChatRequest{
		Model:    p.opts.Model,
		Messages: toAPIMessages(msgs),
		Stream:   &stream,
	}
	if p.opts.Temperature > 0 {
		req.Options = map[string]interface{}{"temperature": p.opts.Temperature}
	}

	var replies []core.ChatMessage
	err := p.client.Chat(ctx, req, func(r api.ChatResponse) error {
		if r.Message.Content != "" {
			replies = append(replies, fromAPIMessage(r.Message))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	return replies, nil
}

// Info implements model.Provider.
func (p *Provider) Info() model.Info {
	return model.Info{Name: p.opts.Model, Provider: "ollama"}
}

func toAPIMessages(msgs []core.ChatMessage) []api.Message {
	out := make([]api.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, api.Message{Role: string(m.Role), Content: m.Text})
	}
	return out
}

func fromAPIMessage(m api.Message) core.ChatMessage {
	role := core.Role(m.Role)
	if role == "" {
		role = core.RoleAssistant
	}
	return core.ChatMessage{Role: role, Text: m.Content}
}
