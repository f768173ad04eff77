package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/ifai/core"
	"github.com/hupe1980/ifai/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ model.Provider = (*Provider)(nil)

func TestBuildMessages(t *testing.T) {
	msgs, err := buildMessages([]core.ChatMessage{
		core.SystemMessage("sys"),
		core.UserMessage("hi"),
		core.AssistantMessage("hello"),
	})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	assert.NotNil(t, msgs[2].OfAssistant)

	_, err = buildMessages([]core.ChatMessage{{Role: "tool", Text: "x"}})
	assert.ErrorIs(t, err, errUnknownRole)
}

func TestChat(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "test-model",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "A troll blocks the bridge."}
			}]
		}`))
	}))
	defer srv.Close()

	p := New(func(o *Options) {
		o.BaseURL = srv.URL
		o.APIKey = "test-key"
		o.Model = "test-model"
	})
	out, err := p.Chat(context.Background(), []core.ChatMessage{core.UserMessage("cross bridge")})
	require.NoError(t, err)
	assert.Equal(t, []core.ChatMessage{core.AssistantMessage("A troll blocks the bridge.")}, out)

	assert.Equal(t, "test-model", body["model"])
	assert.Len(t, body["messages"], 1)
	assert.Equal(t, model.Info{Name: "test-model", Provider: "openai"}, p.Info())
}

func TestChat_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer srv.Close()

	p := New(func(o *Options) {
		o.BaseURL = srv.URL
		o.APIKey = "k"
	})
	out, err := p.Chat(context.Background(), []core.ChatMessage{core.UserMessage("x")})
	require.NoError(t, err)
	assert.Empty(t, out)
}
