package dispatch

import (
	"strings"
	"sync"

	"github.com/hupe1980/ifai/core"
	"github.com/hupe1980/ifai/eventbus"
	"github.com/hupe1980/ifai/logging"
)

// Source is the engine surface a Dispatcher needs. *engine.Engine
// satisfies it.
type Source interface {
	Subscribe(obs eventbus.Observer) eventbus.Token
	Unsubscribe(token eventbus.Token)
	RequestCancellation()
	Send(cmd core.Command) error
}

// Options configures a Dispatcher.
type Options struct {
	// OnChange runs after every top-level message was applied, with the
	// dispatcher's lock released. Use it to schedule a redraw.
	OnChange func(View)
	// OnExit terminates the host. It runs once, last in the shutdown sequence.
	OnExit func()
	// OnComplete runs when the engine's output completed.
	OnComplete func()
	// OnDispatch, if set, observes every leaf just before it is applied.
	OnDispatch func(core.Leaf)
	Logger     logging.Logger
}

// View is a snapshot of what the front-end displays.
type View struct {
	RoomDescription string
	State           core.GameState
	HasState        bool
	History         []core.NewHistoryItem
	Debug           []string
	Quitting        bool
}

// Dispatcher applies engine messages to a view state.
type Dispatcher struct {
	source Source
	opts   Options
	logger logging.Logger

	mu    sync.Mutex
	view  View
	token eventbus.Token
	// attached is true between Attach and Shutdown; closed once Shutdown ran.
	attached bool
	closed   bool

	shutdownOnce sync.Once
}

// New creates a dispatcher for source. Call Attach to start receiving.
func New(source Source, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Dispatcher{source: source, opts: opts, logger: logging.OrNoOp(opts.Logger)}
}

// Attach subscribes to the source. Calling it again has no effect.
func (d *Dispatcher) Attach() {
	d.mu.Lock()
	if d.attached || d.closed {
		d.mu.Unlock()
		return
	}
	d.attached = true
	d.mu.Unlock()

	token := d.source.Subscribe(d)

	d.mu.Lock()
	d.token = token
	closed := d.closed
	d.mu.Unlock()
	if closed {
		// Shutdown ran before the token was known.
		d.source.Unsubscribe(token)
	}
}

// Submit sends text as player input. Blank input is ignored and reported
// as not sent.
func (d *Dispatcher) Submit(text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}
	if err := d.source.Send(core.UserInput{Text: text}); err != nil {
		return false, err
	}
	return true, nil
}

// Send forwards an arbitrary command.
func (d *Dispatcher) Send(cmd core.Command) error { return d.source.Send(cmd) }

// Snapshot returns a copy of the view state.
func (d *Dispatcher) Snapshot() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Dispatcher) snapshotLocked() View {
	v := d.view
	v.State = d.view.State.Clone()
	v.History = append([]core.NewHistoryItem(nil), d.view.History...)
	v.Debug = append([]string(nil), d.view.Debug...)
	return v
}

// OnMessage implements eventbus.Observer. Batches are flattened in order
// and the whole message is applied before OnChange runs.
func (d *Dispatcher) OnMessage(msg core.Message) {
	d.mu.Lock()
	if !d.attached {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	core.Walk([]core.Message{msg}, func(l core.Leaf) {
		if d.opts.OnDispatch != nil {
			d.opts.OnDispatch(l)
		}
		l.Dispatch(d)
	})

	view := d.Snapshot()
	if d.opts.OnChange != nil {
		d.opts.OnChange(view)
	}
	if view.Quitting {
		d.Shutdown()
	}
}

// OnComplete implements eventbus.Observer.
func (d *Dispatcher) OnComplete() {
	d.logger.Debug("engine output completed")
	if d.opts.OnComplete != nil {
		d.opts.OnComplete()
	}
}

// OnUpdatedGameState stores the state and its room description.
func (d *Dispatcher) OnUpdatedGameState(m core.UpdatedGameState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.State = m.State.Clone()
	d.view.HasState = true
	d.view.RoomDescription = m.State.RoomDescription
}

// OnNewHistoryItem appends to the narrative log.
func (d *Dispatcher) OnNewHistoryItem(m core.NewHistoryItem) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.History = append(d.view.History, m)
}

// OnClearScreen empties the history and debug logs together.
func (d *Dispatcher) OnClearScreen(core.ClearScreen) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.History = nil
	d.view.Debug = nil
}

// OnDebugOutputResult appends the result's text to the debug log.
func (d *Dispatcher) OnDebugOutputResult(m core.DebugOutputResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.Debug = append(d.view.Debug, m.String())
}

// OnDebugOutputMessage appends to the debug log.
func (d *Dispatcher) OnDebugOutputMessage(m core.DebugOutputMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.Debug = append(d.view.Debug, m.Message)
}

// OnRequestQuit marks the view as quitting. The shutdown itself runs after
// the enclosing top-level message was fully applied.
func (d *Dispatcher) OnRequestQuit(core.RequestQuit) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.Quitting = true
}

// Shutdown unsubscribes from the source, requests engine cancellation and
// finally runs OnExit, in that order and at most once.
func (d *Dispatcher) Shutdown() {
	d.shutdownOnce.Do(func() {
		d.mu.Lock()
		token, attached := d.token, d.attached
		d.attached = false
		d.closed = true
		d.view.Quitting = true
		d.mu.Unlock()

		if attached {
			d.source.Unsubscribe(token)
		}
		d.source.RequestCancellation()
		d.logger.Info("dispatcher shut down")
		if d.opts.OnExit != nil {
			d.opts.OnExit()
		}
	})
}
