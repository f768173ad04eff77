package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/ifai/core"
	"github.com/hupe1980/ifai/internal/testutil"
	"github.com/hupe1980/ifai/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProviderImpl for asserting exact provider requests.
type MockProviderImpl struct{ mock.Mock }

func (m *MockProviderImpl) Chat(ctx context.Context, msgs []core.ChatMessage) ([]core.ChatMessage, error) {
	args := m.Called(ctx, msgs)
	if out, ok := args.Get(0).([]core.ChatMessage); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProviderImpl) Info() model.Info { return model.Info{Name: "mock", Provider: "mock"} }

func TestSession_SystemMessagePrecedesHistory(t *testing.T) {
	p := &MockProviderImpl{}
	p.On("Chat", mock.Anything, []core.ChatMessage{
		core.SystemMessage("Sys"),
		core.UserMessage("Hello"),
	}).Return([]core.ChatMessage{core.AssistantMessage("Hi")}, nil).Once()

	s := NewSession(p)
	s.SetSystemMessage("Sys")

	got, err := s.Prompt(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi", got)
	assert.Equal(t, []core.ChatMessage{core.UserMessage("Hello"), core.AssistantMessage("Hi")}, s.History())
	p.AssertExpectations(t)
}

func TestSession_NewChatIgnoresPriorTurns(t *testing.T) {
	p := testutil.NewScriptedProvider().Say("a1").Say("b1")
	s := NewSession(p)

	_, err := s.Prompt(context.Background(), "A")
	require.NoError(t, err)
	got, err := s.Prompt(context.Background(), "B", NewChat)
	require.NoError(t, err)
	assert.Equal(t, "b1", got)

	assert.Equal(t, []core.ChatMessage{core.UserMessage("B")}, p.LastRequest())
	assert.Equal(t, []core.ChatMessage{core.UserMessage("B"), core.AssistantMessage("b1")}, s.History())
}

func TestSession_ContinueChatSendsFullHistory(t *testing.T) {
	p := testutil.NewScriptedProvider().Say("r1").Say("r2").Say("r3")
	s := NewSession(p, func(o *SessionOptions) { o.SystemMessage = "narrate" })

	for _, in := range []string{"one", "two", "three"} {
		_, err := s.Prompt(context.Background(), in)
		require.NoError(t, err)
	}

	reqs := p.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, []core.ChatMessage{
		core.SystemMessage("narrate"),
		core.UserMessage("one"),
		core.AssistantMessage("r1"),
		core.UserMessage("two"),
		core.AssistantMessage("r2"),
		core.UserMessage("three"),
	}, reqs[2])
	assert.Len(t, s.History(), 6)
}

func TestSession_JoinsMultipleReplies(t *testing.T) {
	p := testutil.NewScriptedProvider().Say("line one", "line two")
	s := NewSession(p)

	got, err := s.Prompt(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", got)
	assert.Equal(t, core.AssistantMessage("line one\nline two"), s.History()[1])
}

func TestSession_EmptyResponse(t *testing.T) {
	p := testutil.NewScriptedProvider().Say()
	s := NewSession(p)

	got, err := s.Prompt(context.Background(), "x")
	assert.ErrorIs(t, err, core.ErrEmptyResponse)
	assert.Empty(t, got)
	assert.Equal(t, []core.ChatMessage{core.UserMessage("x")}, s.History(), "user turn is retained")
}

func TestSession_ProviderErrorPropagatesUnchanged(t *testing.T) {
	boom := errors.New("connection refused")
	p := testutil.NewScriptedProvider().Fail(boom).Say("ok")
	s := NewSession(p)

	_, err := s.Prompt(context.Background(), "first")
	assert.Same(t, boom, err)
	assert.Equal(t, []core.ChatMessage{core.UserMessage("first")}, s.History())

	_, err = s.Prompt(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, []core.ChatMessage{
		core.UserMessage("first"),
		core.UserMessage("second"),
	}, p.LastRequest(), "failed user turn is sent again as context")
}

func TestSession_RollbackOnFailure(t *testing.T) {
	p := testutil.NewScriptedProvider().Say("a").Fail(errors.New("down"))
	s := NewSession(p, func(o *SessionOptions) { o.RollbackOnFailure = true })

	_, err := s.Prompt(context.Background(), "one")
	require.NoError(t, err)
	_, err = s.Prompt(context.Background(), "two")
	require.Error(t, err)

	assert.Equal(t, []core.ChatMessage{core.UserMessage("one"), core.AssistantMessage("a")}, s.History())
}

func TestSession_SystemMessageAccessors(t *testing.T) {
	s := NewSession(testutil.NewScriptedProvider())
	_, ok := s.SystemMessage()
	assert.False(t, ok)

	s.SetSystemMessage("first")
	s.SetSystemMessage("second")
	text, ok := s.SystemMessage()
	assert.True(t, ok)
	assert.Equal(t, "second", text)
	assert.Empty(t, s.History(), "system directive is not history")

	s.ClearSystemMessage()
	_, ok = s.SystemMessage()
	assert.False(t, ok)
}

func TestSession_ResetKeepsSystemMessage(t *testing.T) {
	p := testutil.NewScriptedProvider()
	s := NewSession(p, func(o *SessionOptions) { o.SystemMessage = "sys" })
	_, err := s.Prompt(context.Background(), "x")
	require.NoError(t, err)

	s.Reset()
	assert.Empty(t, s.History())
	_, err = s.Prompt(context.Background(), "y")
	require.NoError(t, err)
	assert.Equal(t, []core.ChatMessage{core.SystemMessage("sys"), core.UserMessage("y")}, p.LastRequest())
}

func TestSession_HistoryIsACopy(t *testing.T) {
	s := NewSession(testutil.NewScriptedProvider())
	_, err := s.Prompt(context.Background(), "x")
	require.NoError(t, err)

	h := s.History()
	h[0].Text = "mutated"
	assert.Equal(t, "x", s.History()[0].Text)
}

func TestSession_ConcurrentPromptsAreSerialized(t *testing.T) {
	s := NewSession(testutil.NewScriptedProvider())

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Prompt(context.Background(), "turn")
		}()
	}
	wg.Wait()

	h := s.History()
	require.Len(t, h, 2*n)
	for i := 0; i < len(h); i += 2 {
		assert.Equal(t, core.RoleUser, h[i].Role)
		assert.Equal(t, core.RoleAssistant, h[i+1].Role)
	}
}

func TestSession_SetSystemMessageDoesNotWaitForPrompt(t *testing.T) {
	p := testutil.NewScriptedProvider()
	p.Block = true
	s := NewSession(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _, _ = s.Prompt(ctx, "slow") }()

	done := make(chan struct{})
	go func() {
		s.SetSystemMessage("changed")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SetSystemMessage blocked on an in-flight prompt")
	}
}

func TestSession_IDs(t *testing.T) {
	a := NewSession(testutil.NewScriptedProvider())
	b := NewSession(testutil.NewScriptedProvider())
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())

	c := NewSession(testutil.NewScriptedProvider(), func(o *SessionOptions) { o.ID = "fixed" })
	assert.Equal(t, "fixed", c.ID())
}
