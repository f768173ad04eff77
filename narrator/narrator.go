// Package narrator implements an engine.Handler that turns player input
// into AI narration.
//
// Every line the player types is echoed into the history, sent to a
// conversation session on a background task and answered with a batch that
// carries the narration, the advanced game state and a timing trace. A few
// words are handled locally: "quit"/"exit", "clear", "new" and "look".
package narrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/ifai/conversation"
	"github.com/hupe1980/ifai/core"
	"github.com/hupe1980/ifai/engine"
	"github.com/hupe1980/ifai/logging"
)

// System command names understood by the narrator.
const (
	CommandClear  = "clear"
	CommandNew    = "new"
	CommandLook   = "look"
	CommandSystem = "system"
)

// CommandKindNarration labels NarrationResult.
const CommandKindNarration core.CommandKind = "narration"

// NarrationResult carries the outcome of a background prompt back to the
// engine loop.
type NarrationResult struct {
	Input    string
	Text     string
	Err      error
	Duration time.Duration
}

// Kind implements core.Command.
func (NarrationResult) Kind() core.CommandKind { return CommandKindNarration }

// Prompter is the part of a conversation session the narrator uses.
type Prompter interface {
	Prompt(ctx context.Context, text string, optFns ...func(o *conversation.PromptOptions)) (string, error)
	SetSystemMessage(text string)
}

// Options configures a Narrator.
type Options struct {
	// InitialState is the state published for "look" before any narration.
	InitialState core.GameState
	// QuitWords end the game when typed as the whole input.
	QuitWords []string
	Logger    logging.Logger
}

// Narrator is an engine.Handler. Its state is only touched from the engine
// loop, so it holds no locks.
type Narrator struct {
	session   Prompter
	logger    logging.Logger
	quitWords map[string]struct{}

	state core.GameState
	// freshChat makes the next prompt start from an empty history.
	freshChat bool
}

// New creates a narrator that prompts session.
func New(session Prompter, optFns ...func(o *Options)) *Narrator {
	opts := Options{
		InitialState: core.GameState{RoomID: "start"},
		QuitWords:    []string{"quit", "exit"},
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	words := make(map[string]struct{}, len(opts.QuitWords))
	for _, w := range opts.QuitWords {
		words[strings.ToLower(w)] = struct{}{}
	}
	return &Narrator{
		session:   session,
		logger:    logging.OrNoOp(opts.Logger),
		quitWords: words,
		state:     opts.InitialState.Clone(),
	}
}

// Handle implements engine.Handler.
func (n *Narrator) Handle(cc *engine.CommandContext) error {
	switch cmd := cc.Command().(type) {
	case core.UserInput:
		return n.handleInput(cc, cmd.Text)
	case core.Quit:
		cc.Emit(core.RequestQuit{})
		return nil
	case core.SystemCommand:
		return n.handleSystem(cc, cmd)
	case NarrationResult:
		n.handleResult(cc, cmd)
		return nil
	default:
		return fmt.Errorf("unsupported command %q", cmd.Kind())
	}
}

func (n *Narrator) handleInput(cc *engine.CommandContext, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	word := strings.ToLower(text)
	if _, ok := n.quitWords[word]; ok {
		cc.Emit(core.RequestQuit{})
		return nil
	}
	switch word {
	case CommandClear, CommandNew, CommandLook:
		return n.handleSystem(cc, core.SystemCommand{Name: word})
	}

	cc.Emit(core.NewHistory(core.SourcePlayer, text))

	var optFns []func(o *conversation.PromptOptions)
	if n.freshChat {
		optFns = append(optFns, conversation.NewChat)
		n.freshChat = false
	}
	session := n.session
	cc.Go(func(ctx context.Context) core.Command {
		start := time.Now()
		reply, err := session.Prompt(ctx, text, optFns...)
		return NarrationResult{Input: text, Text: reply, Err: err, Duration: time.Since(start)}
	})
	return nil
}

func (n *Narrator) handleSystem(cc *engine.CommandContext, cmd core.SystemCommand) error {
	switch cmd.Name {
	case CommandClear:
		cc.Emit(core.ClearScreen{})
	case CommandNew:
		n.freshChat = true
		n.state.Turn = 0
		cc.Emit(core.NewBatch(
			core.ClearScreen{},
			core.NewHistory(core.SourceSystem, "A new story begins."),
			core.UpdatedGameState{State: n.state.Clone()},
		))
	case CommandLook:
		cc.Emit(core.UpdatedGameState{State: n.state.Clone()})
	case CommandSystem:
		text := strings.Join(cmd.Args, " ")
		n.session.SetSystemMessage(text)
		cc.Emit(core.DebugOutputResult{Value: fmt.Sprintf("system message set (%d chars)", len(text))})
	default:
		return fmt.Errorf("unknown system command %q", cmd.Name)
	}
	return nil
}

func (n *Narrator) handleResult(cc *engine.CommandContext, res NarrationResult) {
	if res.Err != nil {
		n.logger.Warn("narration failed", "input", res.Input, "error", res.Err)
		cc.Emit(core.NewBatch(
			core.NewHistory(core.SourceSystem, "The narrator falls silent."),
			core.DebugOutputMessage{Message: fmt.Sprintf("narration failed: %v", res.Err)},
		))
		return
	}

	n.state.Turn++
	n.state.RoomDescription = res.Text
	cc.Emit(core.NewBatch(
		core.NewHistory(core.SourceNarrator, res.Text),
		core.UpdatedGameState{State: n.state.Clone()},
		core.DebugOutputResult{Value: fmt.Sprintf("turn %d narrated in %s", n.state.Turn, res.Duration.Round(time.Millisecond))},
	))
}

// State returns a copy of the current game state. Call it only from the
// engine loop or after the engine stopped.
func (n *Narrator) State() core.GameState { return n.state.Clone() }
