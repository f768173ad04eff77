// Package engine runs the game's command loop.
//
// The Engine owns a single worker goroutine that takes commands from an
// unbounded input Queue, hands each one to a Handler and publishes the
// messages the handler emitted on an eventbus.Bus. Because there is only one
// worker, the game model behind the handler is never touched concurrently
// and every observer sees messages in the order they were produced.
//
// # Lifecycle
//
//	New ──Start──▶ Running ──RequestCancellation──▶ Cancelling ──▶ Stopped
//
// Cancellation is checked at the top of each iteration, so the command being
// processed always finishes and its messages are published. On the way to
// Stopped the input queue is closed (later Send calls return
// core.ErrEngineStopped), pending commands are dropped and the output bus is
// completed exactly once.
//
// # Faults
//
// A handler error or panic never ends the loop. It is wrapped in a
// core.FaultError and published as a core.DebugOutputMessage after any
// messages the handler emitted before failing.
//
// # Background work
//
// Long operations such as a model round trip should not block the loop.
// CommandContext.Go starts a Task on its own goroutine with a context that
// is cancelled when the engine stops; the command the task returns is sent
// back through the queue and processed like any other:
//
//	func (h *handler) Handle(cc *engine.CommandContext) error {
//	    switch cmd := cc.Command().(type) {
//	    case core.UserInput:
//	        cc.Go(func(ctx context.Context) core.Command {
//	            reply, err := h.session.Prompt(ctx, cmd.Text)
//	            return replyCommand{reply, err}
//	        })
//	    case replyCommand:
//	        cc.Emit(core.NewHistory(core.SourceNarrator, cmd.reply))
//	    }
//	    return nil
//	}
//
// # Hooks
//
// Hooks observe the loop at fixed points (before and after each command, on
// faults and once on stop). NewMetrics provides a set that records
// Prometheus metrics.
package engine
