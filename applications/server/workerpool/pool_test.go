package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donmikel/batchupload/applications/server/domain"
)

func TestPoolCapsConcurrency(t *testing.T) {
	p := New(3, 10, log.NewNopLogger())
	require.NoError(t, p.Start())
	defer p.Shutdown(context.Background())

	var (
		running, peak atomic.Int32
		wg            sync.WaitGroup
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(context.Background(), func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
		}))
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, int32(3), peak.Load())
}

func TestPoolShutdownDrainsQueue(t *testing.T) {
	p := New(1, 5, log.NewNopLogger())
	require.NoError(t, p.Start())

	var done atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(context.Background(), func() {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
		}))
	}

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(5), done.Load())

	err := p.Submit(context.Background(), func() {})
	assert.ErrorIs(t, err, domain.ErrPoolStopped)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestPoolSurvivesPanickingTask(t *testing.T) {
	p := New(1, 1, log.NewNopLogger())
	require.NoError(t, p.Start())
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Submit(context.Background(), func() { panic("boom") }))

	ran := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive panic")
	}
}

func TestPoolSubmitRespectsContext(t *testing.T) {
	p := New(1, 0, log.NewNopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// not started: nobody receives from the unbuffered queue
	err := p.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolStartTwice(t *testing.T) {
	p := New(2, 0, log.NewNopLogger())
	require.NoError(t, p.Start())
	defer p.Shutdown(context.Background())

	assert.Error(t, p.Start())
	assert.Equal(t, 2, p.Workers())
}
