package conversation

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hupe1980/ifai/core"
	"github.com/hupe1980/ifai/logging"
	"github.com/hupe1980/ifai/model"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	// ID defaults to a random UUID.
	ID string
	// SystemMessage, when not empty, is set as the initial system directive.
	SystemMessage string
	// RollbackOnFailure removes the user turn appended by a Prompt whose
	// provider call failed or returned nothing. By default the turn is kept
	// and is sent again as context on the next Prompt.
	RollbackOnFailure bool
	// MaxPrompts caps the provider calls over the session's lifetime. Reset
	// does not restore the budget. Zero means unlimited.
	MaxPrompts int
	Logger     logging.Logger
}

// PromptOptions tunes a single Prompt call.
type PromptOptions struct {
	// ContinueChat keeps the existing history. When false the history is
	// cleared before the new user turn is appended.
	ContinueChat bool
}

// NewChat makes Prompt start from an empty history.
func NewChat(o *PromptOptions) { o.ContinueChat = false }

// Session is one dialogue with a provider. It is safe for concurrent use.
type Session struct {
	id       string
	provider model.Provider
	logger   logging.Logger
	rollback bool
	budget   *Budget

	// flight serializes Prompt calls; mu guards the fields below and is
	// never held across a provider call.
	flight sync.Mutex

	mu        sync.RWMutex
	system    string
	hasSystem bool
	history   []core.ChatMessage
}

// NewSession creates a session with an empty history.
func NewSession(provider model.Provider, optFns ...func(o *SessionOptions)) *Session {
	opts := SessionOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}

	s := &Session{
		id:       opts.ID,
		provider: provider,
		logger:   logging.With(logging.OrNoOp(opts.Logger), "session", opts.ID),
		rollback: opts.RollbackOnFailure,
		budget:   NewBudget(opts.MaxPrompts),
	}
	if opts.SystemMessage != "" {
		s.SetSystemMessage(opts.SystemMessage)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Provider returns the provider the session talks to.
func (s *Session) Provider() model.Provider { return s.provider }

// Budget returns the session's provider call budget.
func (s *Session) Budget() *Budget { return s.budget }

// SetSystemMessage replaces the system directive. It does not touch the
// history and takes effect on the next request.
func (s *Session) SetSystemMessage(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.system = text
	s.hasSystem = true
}

// ClearSystemMessage removes the system directive.
func (s *Session) ClearSystemMessage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.system = ""
	s.hasSystem = false
}

// SystemMessage returns the current directive and whether one is set.
func (s *Session) SystemMessage() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.system, s.hasSystem
}

// History returns a copy of the dialogue turns. The system directive is
// not part of the history.
func (s *Session) History() []core.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.CloneMessages(s.history)
}

// Reset clears the history and keeps the system directive.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// Prompt sends text as the next user turn and returns the provider's reply,
// the texts of all returned messages joined by newlines.
//
// Provider errors are returned unchanged. A provider that answers with no
// messages yields core.ErrEmptyResponse. In both cases no assistant turn is
// recorded, while the user turn stays in the history unless the session was
// created with RollbackOnFailure. Once the budget is spent Prompt returns
// ErrBudgetExhausted and leaves the history untouched.
func (s *Session) Prompt(ctx context.Context, text string, optFns ...func(o *PromptOptions)) (string, error) {
	opts := PromptOptions{ContinueChat: true}
	for _, fn := range optFns {
		fn(&opts)
	}

	s.flight.Lock()
	defer s.flight.Unlock()

	if err := s.budget.Take(); err != nil {
		return "", err
	}

	request, userIndex := s.beginTurn(text, opts.ContinueChat)
	s.logger.Debug("prompt", "continue", opts.ContinueChat, "request_messages", len(request))

	replies, err := s.provider.Chat(ctx, request)
	if err == nil && len(replies) == 0 {
		err = core.ErrEmptyResponse
	}
	if err != nil {
		s.logger.Warn("prompt failed", "error", err)
		if s.rollback {
			s.dropTurn(userIndex)
		}
		return "", err
	}

	texts := make([]string, len(replies))
	for i, r := range replies {
		texts[i] = r.Text
	}
	response := strings.Join(texts, "\n")

	s.mu.Lock()
	s.history = append(s.history, core.AssistantMessage(response))
	s.mu.Unlock()
	return response, nil
}

// beginTurn appends the user turn and builds the request. It returns the
// index of the appended turn.
func (s *Session) beginTurn(text string, continueChat bool) ([]core.ChatMessage, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !continueChat {
		s.history = nil
	}
	s.history = append(s.history, core.UserMessage(text))

	request := make([]core.ChatMessage, 0, len(s.history)+1)
	if s.hasSystem {
		request = append(request, core.SystemMessage(s.system))
	}
	request = append(request, s.history...)
	return request, len(s.history) - 1
}

// dropTurn removes the user turn at index i if nothing replaced the history
// in the meantime.
func (s *Session) dropTurn(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < len(s.history) && s.history[i].Role == core.RoleUser {
		s.history = append(s.history[:i], s.history[i+1:]...)
	}
}
