package engine

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/ifai/core"
	"github.com/hupe1980/ifai/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// echoHandler emits one narrator line per user input.
var echoHandler = HandlerFunc(func(cc *CommandContext) error {
	if in, ok := cc.Command().(core.UserInput); ok {
		cc.Emit(core.NewHistory(core.SourceNarrator, in.Text))
	}
	return nil
})

func texts(leaves []core.Leaf) []string {
	var out []string
	for _, l := range leaves {
		switch m := l.(type) {
		case core.NewHistoryItem:
			out = append(out, m.Text)
		case core.DebugOutputMessage:
			out = append(out, "debug:"+m.Message)
		}
	}
	return out
}

func startWithRecorder(t *testing.T, h Handler, optFns ...func(o *Options)) (*Engine, *testutil.Recorder) {
	t.Helper()
	e := New(h, optFns...)
	rec := testutil.NewRecorder()
	e.Subscribe(rec)
	e.Start()
	t.Cleanup(func() {
		e.RequestCancellation()
		_ = e.Wait(context.Background())
	})
	return e, rec
}

func TestEngine_ProcessesInOrder(t *testing.T) {
	e, rec := startWithRecorder(t, echoHandler)
	assert.Equal(t, StateRunning, e.State())

	for _, s := range []string{"one", "two", "three"} {
		require.NoError(t, e.Send(core.UserInput{Text: s}))
	}
	require.True(t, rec.WaitFor(3, waitTimeout))
	assert.Equal(t, []string{"one", "two", "three"}, texts(rec.Leaves()))
}

func TestEngine_SendNil(t *testing.T) {
	e := New(echoHandler)
	assert.ErrorIs(t, e.Send(nil), ErrNilCommand)
}

func TestEngine_HandlerErrorBecomesDiagnostic(t *testing.T) {
	boom := errors.New("boom")
	h := HandlerFunc(func(cc *CommandContext) error {
		in := cc.Command().(core.UserInput)
		cc.Emit(core.NewHistory(core.SourceNarrator, in.Text))
		if in.Text == "fail" {
			return boom
		}
		return nil
	})
	e, rec := startWithRecorder(t, h)

	require.NoError(t, e.Send(core.UserInput{Text: "fail"}))
	require.NoError(t, e.Send(core.UserInput{Text: "after"}))
	require.True(t, rec.WaitFor(3, waitTimeout))

	got := texts(rec.Leaves())
	require.Len(t, got, 3)
	assert.Equal(t, "fail", got[0], "emitted messages precede the fault")
	assert.True(t, strings.HasPrefix(got[1], "debug:"))
	assert.Contains(t, got[1], "boom")
	assert.Equal(t, "after", got[2], "loop keeps running")
	assert.Equal(t, StateRunning, e.State())
}

func TestEngine_HandlerPanicIsRecovered(t *testing.T) {
	h := HandlerFunc(func(cc *CommandContext) error {
		if in := cc.Command().(core.UserInput); in.Text == "panic" {
			panic("kaboom")
		}
		cc.Emit(core.NewHistory(core.SourceNarrator, "ok"))
		return nil
	})
	e, rec := startWithRecorder(t, h, func(o *Options) { o.Config.IncludeStack = true })

	require.NoError(t, e.Send(core.UserInput{Text: "panic"}))
	require.NoError(t, e.Send(core.UserInput{Text: "next"}))
	require.True(t, rec.WaitFor(2, waitTimeout))

	got := texts(rec.Leaves())
	assert.Contains(t, got[0], "panic: kaboom")
	assert.Contains(t, got[0], "goroutine", "stack trace included")
	assert.Equal(t, "ok", got[1])
}

func TestEngine_CancellationFinishesInFlightCommand(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	h := HandlerFunc(func(cc *CommandContext) error {
		in := cc.Command().(core.UserInput)
		if in.Text == "slow" {
			close(entered)
			<-release
			assert.NoError(t, cc.Context().Err(), "handler context is not cancelled")
		}
		cc.Emit(core.NewHistory(core.SourceNarrator, in.Text))
		return nil
	})
	e, rec := startWithRecorder(t, h)

	require.NoError(t, e.Send(core.UserInput{Text: "slow"}))
	<-entered
	require.NoError(t, e.Send(core.UserInput{Text: "dropped"}))

	e.RequestCancellation()
	e.RequestCancellation()
	assert.Equal(t, StateCancelling, e.State())
	close(release)

	require.NoError(t, e.Wait(context.Background()))
	assert.Equal(t, StateStopped, e.State())
	assert.Equal(t, []string{"slow"}, texts(rec.Leaves()))
	assert.Equal(t, 1, rec.Completions())
	assert.Equal(t, uint64(1), e.Processed())

	assert.ErrorIs(t, e.Send(core.UserInput{Text: "late"}), core.ErrEngineStopped)
}

func TestEngine_CancelFromObserver(t *testing.T) {
	h := HandlerFunc(func(cc *CommandContext) error {
		if _, ok := cc.Command().(core.Quit); ok {
			cc.Emit(core.RequestQuit{})
		}
		return nil
	})
	e := New(h)
	e.Output().SubscribeFunc(func(msg core.Message) {
		if _, ok := msg.(core.RequestQuit); ok {
			e.RequestCancellation()
		}
	})
	e.Start()

	require.NoError(t, e.Send(core.Quit{}))
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, e.Wait(ctx))
	assert.True(t, e.Output().Completed())
}

func TestEngine_CancelBeforeStart(t *testing.T) {
	e := New(echoHandler)
	rec := testutil.NewRecorder()
	e.Subscribe(rec)
	e.RequestCancellation()
	e.Start()

	require.True(t, rec.WaitComplete(waitTimeout))
	assert.Empty(t, rec.Messages())
}

type replyCommand struct{ text string }

func (replyCommand) Kind() core.CommandKind { return "reply" }

func TestEngine_TaskResultReturnsAsCommand(t *testing.T) {
	h := HandlerFunc(func(cc *CommandContext) error {
		switch cmd := cc.Command().(type) {
		case core.UserInput:
			cc.Emit(core.NewHistory(core.SourcePlayer, cmd.Text))
			cc.Go(func(ctx context.Context) core.Command {
				return replyCommand{text: strings.ToUpper(cmd.Text)}
			})
		case replyCommand:
			cc.Emit(core.NewHistory(core.SourceNarrator, cmd.text))
		}
		return nil
	})
	e, rec := startWithRecorder(t, h)

	require.NoError(t, e.Send(core.UserInput{Text: "look"}))
	require.True(t, rec.WaitFor(2, waitTimeout))
	assert.Equal(t, []string{"look", "LOOK"}, texts(rec.Leaves()))
}

func TestEngine_TaskContextCancelledOnStop(t *testing.T) {
	started := make(chan struct{})
	var sawCancel atomic.Bool
	h := HandlerFunc(func(cc *CommandContext) error {
		cc.Go(func(ctx context.Context) core.Command {
			close(started)
			<-ctx.Done()
			sawCancel.Store(true)
			return replyCommand{text: "too late"}
		})
		return nil
	})
	e, rec := startWithRecorder(t, h)

	require.NoError(t, e.Send(core.UserInput{Text: "go"}))
	<-started
	e.RequestCancellation()
	require.NoError(t, e.Wait(context.Background()))
	e.WaitTasks()

	assert.True(t, sawCancel.Load())
	assert.Empty(t, rec.Messages())
}

func TestEngine_TaskPanicIsReported(t *testing.T) {
	h := HandlerFunc(func(cc *CommandContext) error {
		cc.Go(func(context.Context) core.Command { panic("task exploded") })
		return nil
	})
	e, rec := startWithRecorder(t, h)

	require.NoError(t, e.Send(core.UserInput{Text: "go"}))
	require.True(t, rec.WaitFor(1, waitTimeout))
	got := texts(rec.Leaves())
	assert.Contains(t, got[0], "task exploded")
}

func TestEngine_BeforeHookErrorSkipsHandler(t *testing.T) {
	var handled atomic.Int32
	h := HandlerFunc(func(cc *CommandContext) error {
		handled.Add(1)
		return nil
	})
	veto := NewFunctionHook(HookBeforeCommand, func(context.Context, *HookContext) error {
		return errors.New("vetoed")
	})
	e, rec := startWithRecorder(t, h, func(o *Options) { o.Hooks = []Hook{veto} })

	require.NoError(t, e.Send(core.UserInput{Text: "x"}))
	require.True(t, rec.WaitFor(1, waitTimeout))
	assert.Contains(t, texts(rec.Leaves())[0], "vetoed")
	assert.Equal(t, int32(0), handled.Load())
}

func TestEngine_HookPanicIsReported(t *testing.T) {
	for _, hookType := range []HookType{HookBeforeCommand, HookAfterCommand} {
		t.Run(string(hookType), func(t *testing.T) {
			var calls atomic.Int32
			bad := NewFunctionHook(hookType, func(context.Context, *HookContext) error {
				if calls.Add(1) == 1 {
					panic("hook boom")
				}
				return nil
			})
			e, rec := startWithRecorder(t, echoHandler, func(o *Options) { o.Hooks = []Hook{bad} })

			require.NoError(t, e.Send(core.UserInput{Text: "one"}))
			require.NoError(t, e.Send(core.UserInput{Text: "two"}))

			// A panicking before hook skips the handler; an after hook
			// panics once its command's messages are out.
			want := 2
			if hookType == HookAfterCommand {
				want = 3
			}
			require.True(t, rec.WaitFor(want, waitTimeout))

			got := texts(rec.Leaves())
			require.Len(t, got, want)
			if hookType == HookAfterCommand {
				assert.Equal(t, "one", got[0])
				got = got[1:]
			}
			assert.True(t, strings.HasPrefix(got[0], "debug:"))
			assert.Contains(t, got[0], string(hookType)+" hook: panic: hook boom")
			assert.Equal(t, "two", got[1], "loop keeps running")
			assert.Equal(t, StateRunning, e.State())
		})
	}
}

func TestEngine_FaultAndStopHookPanicsDoNotCrash(t *testing.T) {
	h := HandlerFunc(func(*CommandContext) error { return errors.New("bad") })
	onFault := NewFunctionHook(HookOnFault, func(context.Context, *HookContext) error { panic("fault hook") })
	onStop := NewFunctionHook(HookOnStop, func(context.Context, *HookContext) error { panic("stop hook") })
	e, rec := startWithRecorder(t, h, func(o *Options) { o.Hooks = []Hook{onFault, onStop} })

	require.NoError(t, e.Send(core.UserInput{Text: "x"}))
	require.True(t, rec.WaitFor(2, waitTimeout))
	got := texts(rec.Leaves())
	assert.Contains(t, got[0], "bad")
	assert.Contains(t, got[1], "on_fault hook: panic: fault hook")

	e.RequestCancellation()
	require.NoError(t, e.Wait(context.Background()))
	assert.Equal(t, StateStopped, e.State())
}

func TestEngine_EmitNilIsDropped(t *testing.T) {
	h := HandlerFunc(func(cc *CommandContext) error {
		cc.Emit(nil, core.NewHistory(core.SourceNarrator, "kept"))
		return nil
	})
	e := New(h)
	rec := testutil.NewRecorder()
	e.Subscribe(rec)
	e.Output().SubscribeFunc(func(m core.Message) { _ = m.Kind() })
	e.Start()
	t.Cleanup(func() {
		e.RequestCancellation()
		_ = e.Wait(context.Background())
	})

	require.NoError(t, e.Send(core.UserInput{Text: "x"}))
	require.True(t, rec.WaitFor(1, waitTimeout))
	assert.Equal(t, []string{"kept"}, texts(rec.Leaves()))
}

func TestEngine_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	h := HandlerFunc(func(cc *CommandContext) error {
		if in := cc.Command().(core.UserInput); in.Text == "bad" {
			return errors.New("bad input")
		}
		cc.Emit(core.ClearScreen{})
		return nil
	})
	e := New(h, func(o *Options) { o.Hooks = m.Hooks() })
	rec := testutil.NewRecorder()
	e.Subscribe(rec)
	e.Start()

	require.NoError(t, e.Send(core.UserInput{Text: "good"}))
	require.NoError(t, e.Send(core.UserInput{Text: "bad"}))
	require.True(t, rec.WaitFor(2, waitTimeout))
	e.RequestCancellation()
	require.NoError(t, e.Wait(context.Background()))

	assert.Equal(t, 2.0, promtest.ToFloat64(m.commands.WithLabelValues("user_input")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.faults.WithLabelValues("user_input")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.stopped))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "cancelling", StateCancelling.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "state(9)", State(9).String())
}
