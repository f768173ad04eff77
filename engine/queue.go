package engine

import (
	"context"
	"sync"

	"github.com/hupe1980/ifai/core"
)

// Queue is the engine's input channel: an unbounded FIFO that accepts
// commands from any number of goroutines and is drained by exactly one
// consumer. Send never blocks.
type Queue struct {
	mu     sync.Mutex
	items  []core.Command
	closed bool
	// wake holds at most one pending signal; the consumer rechecks items
	// after every wake-up so coalesced signals are harmless.
	wake chan struct{}
}

// NewQueue creates an open, empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Send enqueues cmd. Once the queue is closed it returns core.ErrEngineStopped
// and the command is discarded.
func (q *Queue) Send(cmd core.Command) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return core.ErrEngineStopped
	}
	q.items = append(q.items, cmd)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Next removes and returns the oldest command, blocking while the queue is
// empty. It returns ctx.Err() when ctx is done and core.ErrEngineStopped
// once the queue is closed. A done ctx wins over pending commands.
func (q *Queue) Next(ctx context.Context) (core.Command, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, core.ErrEngineStopped
		}
		if err := ctx.Err(); err != nil {
			q.mu.Unlock()
			return nil, err
		}
		if len(q.items) > 0 {
			cmd := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return cmd, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.wake:
		}
	}
}

// Close rejects further sends and drops pending commands. It returns the
// number of commands that were discarded.
func (q *Queue) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0
	}
	q.closed = true
	dropped := len(q.items)
	q.items = nil
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return dropped
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
