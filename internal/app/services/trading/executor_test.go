package trading

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startExecutor(t *testing.T, workers, queueSize int) *Executor {
	t.Helper()
	e := NewExecutor(workers, queueSize, nil)
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = e.Stop(stopCtx)
	})
	return e
}

func TestExecutorRunsSubmittedWork(t *testing.T) {
	e := startExecutor(t, 2, 4)

	var ran atomic.Bool
	err := e.Submit(context.Background(), "buy", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran.Load())
}

func TestExecutorPropagatesErrors(t *testing.T) {
	e := startExecutor(t, 1, 1)

	wantErr := fmt.Errorf("listing changed")
	err := e.Submit(context.Background(), "buy", func(ctx context.Context) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestExecutorConcurrentSubmits(t *testing.T) {
	e := startExecutor(t, 4, 32)

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := e.Submit(context.Background(), "sell", func(ctx context.Context) error {
				count.Add(1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(32), count.Load())
}

func TestExecutorRejectsWhenStopped(t *testing.T) {
	e := NewExecutor(1, 1, nil)

	err := e.Submit(context.Background(), "buy", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, e.Start(context.Background()))
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.Stop(stopCtx))

	err = e.Submit(context.Background(), "buy", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestExecutorSubmitHonoursContext(t *testing.T) {
	e := startExecutor(t, 1, 1)

	release := make(chan struct{})
	defer close(release)

	// Occupy the single worker so the next submit waits on its result.
	go func() {
		_ = e.Submit(context.Background(), "buy", func(ctx context.Context) error {
			<-release
			return nil
		})
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := e.Submit(ctx, "buy", func(ctx context.Context) error {
		<-release
		return nil
	})
	assert.Error(t, err)
}

func TestExecutorStartIsIdempotent(t *testing.T) {
	e := startExecutor(t, 1, 1)
	require.NoError(t, e.Start(context.Background()))

	err := e.Submit(context.Background(), "buy", func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}
