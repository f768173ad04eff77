// Package openai provides a model.Provider using the OpenAI Chat Completions
// API. Any OpenAI-compatible server (vLLM, LM Studio, Ollama's /v1) works by
// pointing BaseURL at it.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/ifai/core"
	"github.com/hupe1980/ifai/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure the OpenAI provider.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	// BaseURL selects an OpenAI-compatible endpoint; empty uses the SDK default.
	BaseURL string
	// APIKey overrides the OPENAI_API_KEY environment variable.
	APIKey string
}

// Provider wraps the Chat Completions API behind model.Provider.
type Provider struct {
	client *openai.Client
	opts   Options
}

// New creates a provider with a client built from opts.
func New(optFns ...func(o *Options)) *Provider {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(clientOpts...)
	return &Provider{client: &client, opts: opts}
}

// NewFromClient creates a provider from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
}

// Chat implements model.Provider.
func (p *Provider) Chat(ctx context.Context, msgs []core.ChatMessage) ([]core.ChatMessage, error) {
	params, err := p.buildParams(msgs)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}

	// One choice is requested, so only the first is read.
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, nil
	}
	return []core.ChatMessage{core.AssistantMessage(resp.Choices[0].Message.Content)}, nil
}

func (p *Provider) buildParams(msgs []core.ChatMessage) (openai.ChatCompletionNewParams, error) {
	messages, err := buildMessages(msgs)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	return openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               p.opts.Model,
		Temperature:         openai.Float(p.opts.Temperature),
		MaxCompletionTokens: openai.Int(p.opts.MaxCompletionTokens),
	}, nil
}

var errUnknownRole = errors.New("openai: unknown message role")

// buildMessages converts chat messages into SDK message params in order.
func buildMessages(msgs []core.ChatMessage) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Text))
		case core.RoleUser:
			messages = append(messages, openai.UserMessage(m.Text))
		case core.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Text))
		default:
			return nil, fmt.Errorf("%w %q", errUnknownRole, m.Role)
		}
	}
	return messages, nil
}

// Info returns metadata describing this provider.
func (p *Provider) Info() model.Info {
	return model.Info{Name: p.opts.Model, Provider: "openai"}
}
