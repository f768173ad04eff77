package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/ifai/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, q.Send(core.UserInput{Text: text}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		cmd, err := q.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, core.UserInput{Text: want}, cmd)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_NextBlocksUntilSend(t *testing.T) {
	q := NewQueue()
	got := make(chan core.Command, 1)
	go func() {
		cmd, err := q.Next(context.Background())
		if err == nil {
			got <- cmd
		}
	}()

	select {
	case <-got:
		t.Fatal("Next returned before anything was sent")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Send(core.Quit{}))
	select {
	case cmd := <-got:
		assert.Equal(t, core.Quit{}, cmd)
	case <-time.After(time.Second):
		t.Fatal("Next did not wake up")
	}
}

func TestQueue_NextHonoursContext(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueue_NextPrefersCancellationOverPending(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Send(core.UserInput{Text: "late"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd, err := q.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, cmd)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Send(core.UserInput{Text: "pending"}))

	assert.Equal(t, 1, q.Close())
	assert.Equal(t, 0, q.Close(), "second close drops nothing")

	assert.ErrorIs(t, q.Send(core.UserInput{Text: "late"}), core.ErrEngineStopped)
	_, err := q.Next(context.Background())
	assert.ErrorIs(t, err, core.ErrEngineStopped)
}

func TestQueue_ConcurrentSenders(t *testing.T) {
	q := NewQueue()
	const senders, perSender = 8, 100

	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				_ = q.Send(core.UserInput{Text: "x"})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, senders*perSender, q.Len())
}
