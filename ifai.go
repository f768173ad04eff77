// Package ifai wires the interactive-fiction boundary together: a model
// provider, a conversation session, the narrator handler and the engine
// loop. Most front-ends interact with this package by:
//  1. Loading a config.Config and building a Game with FromConfig (or New
//     with an explicit provider)
//  2. Attaching a dispatch.Dispatcher from NewDispatcher to render output
//  3. Calling Start, then forwarding player input until the engine stops
//
// All defaults are safe for local development: without a provider the game
// answers with a mock.
package ifai

import (
	"context"
	"fmt"
	"io"
	"os"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/ifai/config"
	"github.com/hupe1980/ifai/conversation"
	"github.com/hupe1980/ifai/core"
	"github.com/hupe1980/ifai/dispatch"
	"github.com/hupe1980/ifai/engine"
	"github.com/hupe1980/ifai/logging"
	"github.com/hupe1980/ifai/model"
	"github.com/hupe1980/ifai/model/anthropic"
	"github.com/hupe1980/ifai/model/ollama"
	"github.com/hupe1980/ifai/model/openai"
	"github.com/hupe1980/ifai/narrator"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultSessionID names the session the narrator talks to.
const DefaultSessionID = "main"

// Options configures a Game.
type Options struct {
	EngineConfig engine.Config
	// Provider defaults to a model.MockProvider.
	Provider model.Provider
	// SessionID selects the narrator's session in the store.
	SessionID string
	// SystemMessage, when not empty, is the narrator's initial directive.
	SystemMessage string
	// RollbackOnFailure drops the user turn of failed prompts.
	RollbackOnFailure bool
	// MaxPrompts caps provider calls per session; zero means unlimited.
	MaxPrompts   int
	InitialState core.GameState
	Hooks        []engine.Hook
	// Registerer, when set, receives engine and provider metrics.
	Registerer prometheus.Registerer
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Game is the assembled engine with its narrator and sessions.
type Game struct {
	opts     Options
	provider model.Provider
	sessions *conversation.Store
	session  *conversation.Session
	narrator *narrator.Narrator
	engine   *engine.Engine
}

// New assembles a game. Call Start to run it.
func New(optFns ...func(o *Options)) *Game {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		SessionID:    DefaultSessionID,
		InitialState: core.GameState{RoomID: "start"},
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := logging.OrNoOp(opts.Logger)

	provider := opts.Provider
	if provider == nil {
		provider = model.NewMockProvider("mock")
	}
	hooks := append([]engine.Hook(nil), opts.Hooks...)
	if opts.Registerer != nil {
		provider = model.Instrument(provider, func(o *model.InstrumentOptions) {
			o.Registerer = opts.Registerer
			o.Logger = logger
		})
		hooks = append(hooks, engine.NewMetrics(opts.Registerer).Hooks()...)
	}

	sessions := conversation.NewStore(provider, func(o *conversation.SessionOptions) {
		o.SystemMessage = opts.SystemMessage
		o.RollbackOnFailure = opts.RollbackOnFailure
		o.MaxPrompts = opts.MaxPrompts
		o.Logger = logger
	})
	session := sessions.Get(opts.SessionID)

	n := narrator.New(session, func(o *narrator.Options) {
		o.InitialState = opts.InitialState
		o.Logger = logger
	})
	e := engine.New(n, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Logger = logger
		o.Hooks = hooks
	})

	return &Game{
		opts:     opts,
		provider: provider,
		sessions: sessions,
		session:  session,
		narrator: n,
		engine:   e,
	}
}

// FromConfig builds the provider described by cfg and assembles a game with
// the configured system message.
func FromConfig(cfg *config.Config, optFns ...func(o *Options)) (*Game, error) {
	provider, err := ProviderFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	fns := append([]func(o *Options){func(o *Options) {
		o.Provider = provider
		o.SystemMessage = cfg.SystemMessage
		o.MaxPrompts = cfg.MaxPrompts
	}}, optFns...)
	return New(fns...), nil
}

// Start runs the engine loop and publishes the initial game state.
func (g *Game) Start() error {
	g.engine.Start()
	return g.engine.Send(core.SystemCommand{Name: narrator.CommandLook})
}

// Stop requests cancellation and waits for the loop to finish.
func (g *Game) Stop(ctx context.Context) error {
	g.engine.RequestCancellation()
	return g.engine.Wait(ctx)
}

// NewDispatcher creates a dispatcher attached to the game's engine.
func (g *Game) NewDispatcher(optFns ...func(o *dispatch.Options)) *dispatch.Dispatcher {
	fns := append([]func(o *dispatch.Options){func(o *dispatch.Options) { o.Logger = g.opts.Logger }}, optFns...)
	d := dispatch.New(g.engine, fns...)
	d.Attach()
	return d
}

// Engine returns the engine loop.
func (g *Game) Engine() *engine.Engine { return g.engine }

// Session returns the narrator's conversation session.
func (g *Game) Session() *conversation.Session { return g.session }

// Sessions returns the session store.
func (g *Game) Sessions() *conversation.Store { return g.sessions }

// Provider returns the provider sessions talk to, instrumented if metrics
// are enabled.
func (g *Game) Provider() model.Provider { return g.provider }

// ProviderFromConfig builds the backend selected by cfg.Provider.
func ProviderFromConfig(cfg *config.Config) (model.Provider, error) {
	switch cfg.Provider {
	case config.ProviderOllama, "":
		return ollama.New(func(o *ollama.Options) {
			o.Endpoint = cfg.OllamaEndpoint
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			if cfg.Timeout > 0 {
				o.Timeout = cfg.Timeout
			}
		})
	case config.ProviderOpenAI:
		return openai.New(func(o *openai.Options) {
			o.BaseURL = cfg.OpenAIBaseURL
			o.APIKey = cfg.OpenAIAPIKey
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropic.New(func(o *anthropic.Options) {
			o.APIKey = cfg.AnthropicAPIKey
			if cfg.Model != "" {
				o.Model = sdkanthropic.Model(cfg.Model)
			}
		}), nil
	case config.ProviderMock:
		name := cfg.Model
		if name == "" {
			name = "mock"
		}
		return model.NewMockProvider(name), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// LoggerFromConfig builds the configured logger. Output goes to cfg.LogFile
// when set, otherwise to fallback; a nil fallback disables logging when no
// file is configured. The returned closer releases the log file.
func LoggerFromConfig(cfg *config.Config, fallback io.Writer) (logging.Logger, io.Closer, error) {
	if cfg.LogFile == "" {
		if fallback == nil {
			return logging.NoOpLogger{}, io.NopCloser(nil), nil
		}
		return logging.NewSlogLogger(cfg.Level(), cfg.LogFormat, fallback), io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return logging.NewSlogLogger(cfg.Level(), cfg.LogFormat, f), f, nil
}
