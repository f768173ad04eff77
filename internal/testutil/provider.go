package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/ifai/core"
	"github.com/hupe1980/ifai/model"
)

// Reply is one scripted provider outcome.
type Reply struct {
	Messages []core.ChatMessage
	Err      error
}

// ScriptedProvider returns queued replies in order and records every
// request it receives. When the script runs out it echoes the last user
// message. Set Block to make Chat wait until its context is done.
type ScriptedProvider struct {
	mu       sync.Mutex
	script   []Reply
	requests [][]core.ChatMessage
	Block    bool
}

// NewScriptedProvider creates a provider with the given replies queued.
func NewScriptedProvider(replies ...Reply) *ScriptedProvider {
	return &ScriptedProvider{script: replies}
}

// Say queues a reply made of one assistant message per text.
func (p *ScriptedProvider) Say(texts ...string) *ScriptedProvider {
	msgs := make([]core.ChatMessage, len(texts))
	for i, t := range texts {
		msgs[i] = core.AssistantMessage(t)
	}
	return p.Queue(Reply{Messages: msgs})
}

// Fail queues a failing reply.
func (p *ScriptedProvider) Fail(err error) *ScriptedProvider {
	return p.Queue(Reply{Err: err})
}

// Queue appends replies to the script.
func (p *ScriptedProvider) Queue(replies ...Reply) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, replies...)
	return p
}

// Chat implements model.Provider.
func (p *ScriptedProvider) Chat(ctx context.Context, msgs []core.ChatMessage) ([]core.ChatMessage, error) {
	p.mu.Lock()
	p.requests = append(p.requests, core.CloneMessages(msgs))
	block := p.Block
	var next *Reply
	if len(p.script) > 0 {
		next = &p.script[0]
		p.script = p.script[1:]
	}
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if next != nil {
		return core.CloneMessages(next.Messages), next.Err
	}
	return []core.ChatMessage{core.AssistantMessage("echo: " + model.LastUserText(msgs))}, nil
}

// Info implements model.Provider.
func (p *ScriptedProvider) Info() model.Info { return model.Info{Name: "scripted", Provider: "test"} }

// Requests returns a copy of every request received so far.
func (p *ScriptedProvider) Requests() [][]core.ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]core.ChatMessage, len(p.requests))
	for i, r := range p.requests {
		out[i] = core.CloneMessages(r)
	}
	return out
}

// LastRequest returns the most recent request, or nil.
func (p *ScriptedProvider) LastRequest() []core.ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	return core.CloneMessages(p.requests[len(p.requests)-1])
}
