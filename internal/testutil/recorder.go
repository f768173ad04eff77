package testutil

import (
	"sync"
	"time"

	"github.com/hupe1980/ifai/core"
)

// Recorder is an eventbus observer that keeps every message it receives.
// It is safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	msgs      []core.Message
	completes int
	notify    chan struct{}
	done      chan struct{}
	doneOnce  sync.Once
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1), done: make(chan struct{})}
}

// OnMessage records msg.
func (r *Recorder) OnMessage(msg core.Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// OnComplete records the completion signal.
func (r *Recorder) OnComplete() {
	r.mu.Lock()
	r.completes++
	r.mu.Unlock()
	r.doneOnce.Do(func() { close(r.done) })
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []core.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// Leaves returns the recorded messages with batches flattened.
func (r *Recorder) Leaves() []core.Leaf { return core.Flatten(r.Messages()...) }

// Completions returns how often OnComplete was called.
func (r *Recorder) Completions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completes
}

// WaitFor blocks until at least n messages were recorded or timeout
// elapsed. It reports whether the count was reached.
func (r *Recorder) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		r.mu.Lock()
		got := len(r.msgs)
		r.mu.Unlock()
		if got >= n {
			return true
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			return false
		}
	}
}

// WaitComplete blocks until OnComplete ran or timeout elapsed.
func (r *Recorder) WaitComplete(timeout time.Duration) bool {
	select {
	case <-r.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
