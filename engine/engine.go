package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/ifai/core"
	"github.com/hupe1980/ifai/eventbus"
	"github.com/hupe1980/ifai/logging"
)

// ErrNilCommand is returned by Send for a nil command.
var ErrNilCommand = errors.New("engine: nil command")

// Handler applies one command to the game model and emits the resulting
// messages through the CommandContext. A returned error, like a panic, is
// reported as a diagnostic message; the loop keeps running either way.
type Handler interface {
	Handle(cc *CommandContext) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(cc *CommandContext) error

// Handle calls f(cc).
func (f HandlerFunc) Handle(cc *CommandContext) error { return f(cc) }

// State is the lifecycle phase of an Engine.
type State int32

const (
	// StateIdle is the phase between New and Start.
	StateIdle State = iota
	// StateRunning means the loop is dequeuing commands.
	StateRunning
	// StateCancelling means cancellation was requested; the command in
	// progress, if any, is finishing.
	StateCancelling
	// StateStopped means the output bus has completed.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCancelling:
		return "cancelling"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds tuning knobs for the loop.
type Config struct {
	// IncludeStack appends the recovered stack trace to fault diagnostics.
	IncludeStack bool
}

// DefaultConfig keeps fault diagnostics to a single line.
var DefaultConfig = Config{IncludeStack: false}

// Options configures an Engine.
type Options struct {
	Config Config
	// Logger defaults to a no-op logger.
	Logger logging.Logger
	// Hooks are registered in order before the loop starts.
	Hooks []Hook
}

// Engine runs the command loop. Commands from any goroutine are processed
// one at a time on a single worker goroutine, which is the only place game
// state changes and the only publisher on the output bus. Serialization is
// structural: the loop never locks around handler code.
//
// Lifecycle: New → Start (Running) → RequestCancellation (Cancelling) →
// the loop finishes the command it holds, closes the input queue, completes
// the output bus exactly once and enters Stopped.
type Engine struct {
	handler Handler
	logger  logging.Logger
	config  Config
	hooks   *HookManager

	input  *Queue
	output *eventbus.Bus

	// baseCtx is given to handlers and is never cancelled; runCtx is the
	// cancellation signal checked between commands and given to tasks.
	baseCtx context.Context
	runCtx  context.Context
	cancel  context.CancelFunc

	state     atomic.Int32
	processed atomic.Uint64
	tasks     sync.WaitGroup
	startOnce sync.Once
	done      chan struct{}
}

// New creates an engine around handler. Call Start to begin processing.
func New(handler Handler, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := logging.OrNoOp(opts.Logger)

	base := context.Background()
	runCtx, cancel := context.WithCancel(base)

	return &Engine{
		handler: handler,
		logger:  logger,
		config:  opts.Config,
		hooks:   NewHookManager(opts.Hooks...),
		input:   NewQueue(),
		output:  eventbus.New(func(o *eventbus.Options) { o.Logger = logger }),
		baseCtx: base,
		runCtx:  runCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Run is New followed by Start.
func Run(handler Handler, optFns ...func(o *Options)) *Engine {
	e := New(handler, optFns...)
	e.Start()
	return e
}

// Start launches the loop goroutine. Calling it again has no effect.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning))
		go e.loop()
	})
}

// Input returns the command queue.
func (e *Engine) Input() *Queue { return e.input }

// Output returns the event bus.
func (e *Engine) Output() *eventbus.Bus { return e.output }

// Send enqueues cmd without blocking. After the loop stopped it returns
// core.ErrEngineStopped and the command is dropped.
func (e *Engine) Send(cmd core.Command) error {
	if cmd == nil {
		return ErrNilCommand
	}
	if err := e.input.Send(cmd); err != nil {
		e.logger.Debug("command rejected", "command", cmd.Kind(), "error", err)
		return err
	}
	return nil
}

// Subscribe registers an observer on the output bus.
func (e *Engine) Subscribe(obs eventbus.Observer) eventbus.Token { return e.output.Subscribe(obs) }

// Unsubscribe removes an observer from the output bus.
func (e *Engine) Unsubscribe(token eventbus.Token) { e.output.Unsubscribe(token) }

// RequestCancellation asks the loop to stop after the command it is
// processing. It is safe to call repeatedly and from any goroutine,
// including from an output observer.
func (e *Engine) RequestCancellation() {
	if e.state.CompareAndSwap(int32(StateRunning), int32(StateCancelling)) ||
		e.state.CompareAndSwap(int32(StateIdle), int32(StateCancelling)) {
		e.logger.Info("engine cancellation requested")
	}
	e.cancel()
}

// State returns the current lifecycle phase.
func (e *Engine) State() State { return State(e.state.Load()) }

// Processed returns the number of commands the loop has handled.
func (e *Engine) Processed() uint64 { return e.processed.Load() }

// Done is closed once the engine has stopped.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Wait blocks until the engine stopped or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) loop() {
	defer e.stop()
	e.logger.Info("engine loop started")
	for {
		if e.runCtx.Err() != nil {
			return
		}
		cmd, err := e.input.Next(e.runCtx)
		if err != nil {
			return
		}
		e.process(cmd)
	}
}

func (e *Engine) process(cmd core.Command) {
	start := time.Now()
	cc := &CommandContext{ctx: e.baseCtx, cmd: cmd, engine: e}

	var fault *core.FaultError
	if tf, ok := cmd.(taskFault); ok {
		fault = tf.fault
	} else if err := e.hooks.Execute(e.baseCtx, &HookContext{Type: HookBeforeCommand, Command: cmd}); err != nil {
		fault = &core.FaultError{Command: cmd.Kind(), Err: err}
		var hp *HookPanicError
		if errors.As(err, &hp) {
			fault.Stack = hp.Stack
		}
	} else {
		fault = e.invoke(cc)
	}
	cc.done = true

	msgs := cc.emitted
	if fault != nil {
		e.logger.Error("command failed", "command", cmd.Kind(), "error", fault.Error())
		msgs = append(msgs, e.faultMessage(fault))
	}
	for _, m := range msgs {
		e.output.Publish(m)
	}
	e.processed.Add(1)

	if fault != nil {
		e.hookFailed(cmd, e.hooks.Execute(e.baseCtx, &HookContext{Type: HookOnFault, Command: cmd, Fault: fault}))
	}
	hc := &HookContext{Type: HookAfterCommand, Command: cmd, Messages: msgs, Fault: fault, Duration: time.Since(start)}
	e.hookFailed(cmd, e.hooks.Execute(e.baseCtx, hc))
}

// hookFailed logs a hook error. A hook panic is also published as a
// diagnostic, like a handler fault.
func (e *Engine) hookFailed(cmd core.Command, err error) {
	if err == nil {
		return
	}
	e.logger.Warn("hook failed", "command", cmd.Kind(), "error", err)
	var hp *HookPanicError
	if errors.As(err, &hp) {
		e.output.Publish(e.faultMessage(&core.FaultError{Command: cmd.Kind(), Err: err, Stack: hp.Stack}))
	}
}

// invoke runs the handler and converts an error or panic into a fault.
func (e *Engine) invoke(cc *CommandContext) (fault *core.FaultError) {
	defer func() {
		if r := recover(); r != nil {
			fault = &core.FaultError{Command: cc.cmd.Kind(), Panic: r, Stack: string(debug.Stack())}
		}
	}()
	if err := e.handler.Handle(cc); err != nil {
		return &core.FaultError{Command: cc.cmd.Kind(), Err: err}
	}
	return nil
}

func (e *Engine) faultMessage(f *core.FaultError) core.Message {
	text := f.Error()
	if e.config.IncludeStack && f.Stack != "" {
		text += "\n" + f.Stack
	}
	return core.DebugOutputMessage{Message: text}
}

func (e *Engine) stop() {
	if dropped := e.input.Close(); dropped > 0 {
		e.logger.Warn("engine stopped with pending commands", "dropped", dropped)
	}
	e.state.Store(int32(StateCancelling))
	e.cancel()
	e.output.Complete()
	e.state.Store(int32(StateStopped))

	hc := &HookContext{Type: HookOnStop, Processed: e.processed.Load()}
	if err := e.hooks.Execute(e.baseCtx, hc); err != nil {
		e.logger.Warn("hook failed", "error", err)
	}
	e.logger.Info("engine stopped", "processed", hc.Processed)
	close(e.done)
}

// spawn runs a background task and feeds its result back as a command.
func (e *Engine) spawn(task Task) {
	if e.runCtx.Err() != nil {
		e.logger.Debug("task not started: engine stopping")
		return
	}
	e.tasks.Add(1)
	go func() {
		defer e.tasks.Done()
		var cmd core.Command
		func() {
			defer func() {
				if r := recover(); r != nil {
					cmd = taskFault{fault: &core.FaultError{Command: CommandKindTask, Panic: r, Stack: string(debug.Stack())}}
				}
			}()
			cmd = task(e.runCtx)
		}()
		if cmd == nil {
			return
		}
		if err := e.Send(cmd); err != nil {
			e.logger.Debug("task result dropped", "command", cmd.Kind(), "error", err)
		}
	}()
}

// WaitTasks blocks until every task started with CommandContext.Go returned.
func (e *Engine) WaitTasks() { e.tasks.Wait() }

// CommandKindTask labels faults raised by background tasks.
const CommandKindTask core.CommandKind = "task"

// taskFault carries a panic recovered in a background task back to the loop
// so it is reported like any other processing fault.
type taskFault struct{ fault *core.FaultError }

func (taskFault) Kind() core.CommandKind { return CommandKindTask }
