package eventbus

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hupe1980/ifai/core"
	"github.com/hupe1980/ifai/logging"
)

// ErrCompleted is the panic value raised by Publish after Complete.
var ErrCompleted = errors.New("eventbus: publish after complete")

// Observer consumes messages from a Bus.
type Observer interface {
	OnMessage(msg core.Message)
	OnComplete()
}

// ObserverFunc adapts a function to Observer; completion is ignored.
type ObserverFunc func(msg core.Message)

// OnMessage calls f(msg).
func (f ObserverFunc) OnMessage(msg core.Message) { f(msg) }

// OnComplete does nothing.
func (ObserverFunc) OnComplete() {}

// Token identifies a subscription.
type Token string

type subscription struct {
	token    Token
	observer Observer
	active   atomic.Bool
}

// Options configures a Bus.
type Options struct {
	Logger logging.Logger
}

// Bus is a concurrency-safe broadcaster. The zero value is not usable; call New.
type Bus struct {
	logger logging.Logger

	// mu guards subs and completed. subs is copy-on-write so Publish can
	// iterate a snapshot without holding mu during callbacks.
	mu        sync.Mutex
	subs      []*subscription
	completed bool

	publishMu    sync.Mutex
	completeOnce sync.Once
	done         chan struct{}
}

// New creates an empty bus.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bus{logger: logging.OrNoOp(opts.Logger), done: make(chan struct{})}
}

// Subscribe registers obs. After Complete the observer's OnComplete runs
// immediately and the returned token is inert.
func (b *Bus) Subscribe(obs Observer) Token {
	sub := &subscription{token: Token(uuid.NewString()), observer: obs}

	b.mu.Lock()
	if b.completed {
		b.mu.Unlock()
		obs.OnComplete()
		return sub.token
	}
	sub.active.Store(true)
	next := make([]*subscription, len(b.subs), len(b.subs)+1)
	copy(next, b.subs)
	b.subs = append(next, sub)
	b.mu.Unlock()

	b.logger.Debug("eventbus subscribe", "token", sub.token)
	return sub.token
}

// SubscribeFunc is Subscribe(ObserverFunc(fn)).
func (b *Bus) SubscribeFunc(fn func(msg core.Message)) Token {
	return b.Subscribe(ObserverFunc(fn))
}

// Unsubscribe removes the subscription identified by token. Unknown or
// already removed tokens are ignored. It may be called from within an
// observer callback. When it is called from another goroutine while a
// Publish is running, that Publish may still deliver its message to the
// removed observer; use UnsubscribeWait to rule that out.
func (b *Bus) Unsubscribe(token Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.token != token {
			continue
		}
		s.active.Store(false)
		next := make([]*subscription, 0, len(b.subs)-1)
		next = append(next, b.subs[:i]...)
		b.subs = append(next, b.subs[i+1:]...)
		b.logger.Debug("eventbus unsubscribe", "token", token)
		return
	}
}

// UnsubscribeWait is Unsubscribe followed by waiting for an in-flight
// Publish to return. Once it returns the observer receives nothing more. It
// must not be called from within an observer callback.
func (b *Bus) UnsubscribeWait(token Token) {
	b.Unsubscribe(token)
	b.publishMu.Lock()
	defer b.publishMu.Unlock()
}

// Publish delivers msg to every current observer in registration order.
// Publishes are serialized so concurrent callers never interleave. A
// panicking observer is logged and skipped. A nil msg is dropped. Observers
// must not call Publish from within OnMessage.
func (b *Bus) Publish(msg core.Message) {
	if msg == nil {
		b.logger.Warn("eventbus nil message dropped")
		return
	}

	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	if b.completed {
		b.mu.Unlock()
		panic(ErrCompleted)
	}
	subs := b.subs
	b.mu.Unlock()

	for _, s := range subs {
		if !s.active.Load() {
			continue
		}
		b.deliver(s, msg)
	}
}

func (b *Bus) deliver(s *subscription, msg core.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("eventbus observer panicked", "token", s.token, "type", fmt.Sprintf("%T", msg), "panic", fmt.Sprint(r))
		}
	}()
	s.observer.OnMessage(msg)
}

// Complete ends the stream. It waits for an in-flight Publish, then calls
// OnComplete on each remaining observer and releases the subscriber list.
// Further calls are no-ops. Like Publish, it must not be called from within
// an observer callback.
func (b *Bus) Complete() {
	b.completeOnce.Do(func() {
		b.publishMu.Lock()
		b.mu.Lock()
		b.completed = true
		subs := b.subs
		b.subs = nil
		b.mu.Unlock()
		b.publishMu.Unlock()

		for _, s := range subs {
			if s.active.CompareAndSwap(true, false) {
				s.observer.OnComplete()
			}
		}
		close(b.done)
		b.logger.Debug("eventbus completed", "observers", len(subs))
	})
}

// Done is closed once Complete has run.
func (b *Bus) Done() <-chan struct{} { return b.done }

// Completed reports whether Complete has been called.
func (b *Bus) Completed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completed
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
