// Package anthropic provides a model.Provider for the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/ifai/core"
	"github.com/hupe1980/ifai/model"
)

// Options configures the Anthropic provider (model id, temperature, max
// tokens, API key, base URL).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
}

// Provider wraps the Messages API behind model.Provider.
type Provider struct {
	client *anthropic.Client
	opts   Options
}

// New creates a provider using the official client.
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
	client := anthropic.NewClient(clientOpts...)

	return &Provider{client: &client, opts: opts}
}

// NewFromClient creates a provider from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Provider {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Chat implements model.Provider. System messages are lifted into the
// request's system field; consecutive turns with the same role are merged
// because the API requires user and assistant turns to alternate.
func (p *Provider) Chat(ctx context.Context, msgs []core.ChatMessage) ([]core.ChatMessage, error) {
	params := anthropic.MessageNewParams{
		Model:       p.opts.Model,
		Messages:    buildMessages(msgs),
		MaxTokens:   p.opts.MaxTokens,
		Temperature: anthropic.Float(p.opts.Temperature),
	}
	if system := extractSystem(msgs); len(system) > 0 {
		params.System = system
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return nil, nil
	}
	return []core.ChatMessage{core.AssistantMessage(sb.String())}, nil
}

// buildMessages converts user and assistant turns, merging runs of the same role.
func buildMessages(msgs []core.ChatMessage) []anthropic.MessageParam {
	var (
		out     []anthropic.MessageParam
		role    core.Role
		pending []anthropic.ContentBlockParamUnion
	)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if role == core.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(pending...))
		} else {
			out = append(out, anthropic.NewUserMessage(pending...))
		}
		pending = nil
	}

	for _, m := range msgs {
		if m.Role == core.RoleSystem {
			continue
		}
		if m.Role != role {
			flush()
			role = m.Role
		}
		pending = append(pending, anthropic.NewTextBlock(m.Text))
	}
	flush()
	return out
}

func extractSystem(msgs []core.ChatMessage) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, m := range msgs {
		if m.Role == core.RoleSystem && m.Text != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: m.Text})
		}
	}
	return blocks
}

// Info returns metadata describing this provider.
func (p *Provider) Info() model.Info {
	return model.Info{Name: string(p.opts.Model), Provider: "anthropic"}
}
