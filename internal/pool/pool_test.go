package pool

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForSettle(t *testing.T, f *Future, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if f.State() != Pending {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("future never settled")
}

func TestPool_PostRunsHandlerAndSettlesFuture(t *testing.T) {
	p := New("test", 2, 8)
	defer p.Destroy()

	f, err := p.Post(41, func(data any) (any, error) {
		return data.(int) + 1, nil
	}, nil)
	require.NoError(t, err)

	waitForSettle(t, f, time.Second)
	assert.Equal(t, Resolved, f.State())
	assert.Equal(t, 42, f.Value())
}

func TestPool_PostPropagatesHandlerError(t *testing.T) {
	p := New("test", 1, 8)
	defer p.Destroy()

	wantErr := errors.New("handler failed")
	f, err := p.Post(nil, func(any) (any, error) {
		return nil, wantErr
	}, nil)
	require.NoError(t, err)

	waitForSettle(t, f, time.Second)
	assert.Equal(t, Rejected, f.State())
	assert.Equal(t, wantErr, f.Err())
}

func TestPool_PostCallsFreeAfterHandler(t *testing.T) {
	p := New("test", 1, 8)
	defer p.Destroy()

	var freed bool
	var mu sync.Mutex
	f, err := p.Post("data", func(data any) (any, error) {
		return data, nil
	}, func(data any) {
		mu.Lock()
		freed = true
		mu.Unlock()
	})
	require.NoError(t, err)
	waitForSettle(t, f, time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, freed)
}

func TestPool_PostReturnsErrQueueFullWhenSaturated(t *testing.T) {
	block := make(chan struct{})
	p := New("test", 1, 1)
	defer func() {
		close(block)
		p.Destroy()
	}()

	// Occupy the single worker so the queue genuinely fills up. Wait until
	// the worker has dequeued and started the task before posting more.
	started := make(chan struct{})
	_, err := p.Post(nil, func(any) (any, error) {
		close(started)
		<-block
		return nil, nil
	}, nil)
	require.NoError(t, err)
	<-started

	// Fills the one queue slot.
	_, err = p.Post(nil, func(any) (any, error) { return nil, nil }, nil)
	require.NoError(t, err)

	_, err = p.Post(nil, func(any) (any, error) { return nil, nil }, nil)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestPool_DrainCompletionsWithoutWakeSettlesImmediately(t *testing.T) {
	p := New("test", 1, 8)
	defer p.Destroy()

	f, err := p.Post(7, func(data any) (any, error) { return data, nil }, nil)
	require.NoError(t, err)
	waitForSettle(t, f, time.Second)
	assert.Equal(t, Resolved, f.State())
}

func TestPool_SetWakeFuncInvokedOnCompletion(t *testing.T) {
	p := New("test", 1, 8)
	defer p.Destroy()

	woken := make(chan struct{}, 1)
	p.SetWakeFunc(func() {
		select {
		case woken <- struct{}{}:
		default:
		}
	})

	_, err := p.Post(1, func(data any) (any, error) { return data, nil }, nil)
	require.NoError(t, err)

	select {
	case <-woken:
	case <-time.After(time.Second):
		t.Fatal("wake function was never called")
	}

	p.DrainCompletions()
}
