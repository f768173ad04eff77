package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/ifai/core"
)

// HookType names a point in the engine lifecycle where hooks run.
//
// Hooks run synchronously on the loop goroutine, in registration order:
//   - BeforeCommand: after a command is dequeued, before the handler runs.
//     An error skips the handler and is reported as a processing fault.
//   - AfterCommand: after the handler returned and its messages were published.
//   - OnFault: when a handler error or panic was converted into a diagnostic.
//   - OnStop: once, after the output bus completed.
//
// Errors returned by AfterCommand, OnFault and OnStop hooks are logged only.
// A panicking hook is recovered as a *HookPanicError. Outside OnStop it is
// also published as a diagnostic message.
type HookType string

const (
	HookBeforeCommand HookType = "before_command"
	HookAfterCommand  HookType = "after_command"
	HookOnFault       HookType = "on_fault"
	HookOnStop        HookType = "on_stop"
)

// HookContext carries what a hook may inspect. Fields that do not apply to
// the hook type are zero.
type HookContext struct {
	Type     HookType
	Command  core.Command
	Messages []core.Message
	Fault    *core.FaultError
	Duration time.Duration
	// Processed is the number of commands handled so far, set for OnStop.
	Processed uint64
}

// Hook is a lifecycle extension point.
type Hook interface {
	Type() HookType
	Execute(ctx context.Context, hc *HookContext) error
}

// FunctionHook wraps a function as a Hook.
//
// Example:
//
//	logCommands := NewFunctionHook(HookBeforeCommand, func(ctx context.Context, hc *HookContext) error {
//	    log.Printf("command: %s", hc.Command.Kind())
//	    return nil
//	})
type FunctionHook struct {
	hookType HookType
	fn       func(ctx context.Context, hc *HookContext) error
}

// NewFunctionHook creates a hook of the given type backed by fn.
func NewFunctionHook(hookType HookType, fn func(ctx context.Context, hc *HookContext) error) *FunctionHook {
	return &FunctionHook{hookType: hookType, fn: fn}
}

// Type returns the hook type.
func (h *FunctionHook) Type() HookType { return h.hookType }

// Execute calls the wrapped function.
func (h *FunctionHook) Execute(ctx context.Context, hc *HookContext) error { return h.fn(ctx, hc) }

// HookManager keeps hooks grouped by type. It is populated before the loop
// starts and only read afterwards, so it needs no locking.
type HookManager struct {
	hooks map[HookType][]Hook
}

// NewHookManager creates an empty manager.
func NewHookManager(hooks ...Hook) *HookManager {
	m := &HookManager{hooks: make(map[HookType][]Hook)}
	for _, h := range hooks {
		m.Register(h)
	}
	return m
}

// Register adds a hook.
func (m *HookManager) Register(h Hook) {
	m.hooks[h.Type()] = append(m.hooks[h.Type()], h)
}

// HookPanicError reports a hook that panicked.
type HookPanicError struct {
	Type  HookType
	Value any
	Stack string
}

func (e *HookPanicError) Error() string {
	return fmt.Sprintf("%s hook: panic: %v", e.Type, e.Value)
}

// Execute runs every hook registered for hc.Type and stops at the first
// error or panic.
func (m *HookManager) Execute(ctx context.Context, hc *HookContext) error {
	for _, h := range m.hooks[hc.Type] {
		if err := runHook(ctx, h, hc); err != nil {
			return err
		}
	}
	return nil
}

func runHook(ctx context.Context, h Hook, hc *HookContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HookPanicError{Type: hc.Type, Value: r, Stack: string(debug.Stack())}
		}
	}()
	if err := h.Execute(ctx, hc); err != nil {
		return fmt.Errorf("%s hook: %w", hc.Type, err)
	}
	return nil
}

// Len returns the number of hooks registered for t.
func (m *HookManager) Len(t HookType) int { return len(m.hooks[t]) }
