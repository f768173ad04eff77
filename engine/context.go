package engine

import (
	"context"

	"github.com/hupe1980/ifai/core"
)

// CommandContext is handed to the Handler for one command. It collects the
// messages the handler derives and gives it a way to start background work
// whose outcome comes back to the loop as a new command.
//
// Emit must only be called from the handler's goroutine while Handle runs.
// Send and Go may be called at any time, including from background tasks.
type CommandContext struct {
	ctx     context.Context
	cmd     core.Command
	engine  *Engine
	emitted []core.Message
	done    bool
}

// Context returns the context for the current command. It is not cancelled
// by RequestCancellation: commands already dequeued run to completion.
func (c *CommandContext) Context() context.Context { return c.ctx }

// Command returns the command being processed.
func (c *CommandContext) Command() core.Command { return c.cmd }

// Emit appends messages to publish for this command, in call order. Use a
// core.Batch when several messages must arrive as one update. Nil messages
// are dropped.
func (c *CommandContext) Emit(msgs ...core.Message) {
	if c.done {
		c.engine.logger.Warn("emit after command completed; message dropped", "command", c.cmd.Kind())
		return
	}
	for _, m := range msgs {
		if m == nil {
			c.engine.logger.Warn("nil message dropped", "command", c.cmd.Kind())
			continue
		}
		c.emitted = append(c.emitted, m)
	}
}

// Send enqueues a follow-up command on the engine's input queue.
func (c *CommandContext) Send(cmd core.Command) error { return c.engine.Send(cmd) }

// Task is background work started with Go. The returned command, if not nil,
// is sent to the engine when the task finishes.
type Task func(ctx context.Context) core.Command

// Go runs task on its own goroutine with a context that is cancelled when
// the engine is asked to stop. Use it for provider round trips so the loop
// stays responsive to other commands and to cancellation.
func (c *CommandContext) Go(task Task) { c.engine.spawn(task) }
