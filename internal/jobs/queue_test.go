package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueRunsTasks(t *testing.T) {
	q := NewQueue(Config{Workers: 2, QueueSize: 8})

	var count atomic.Int32
	for i := 0; i < 5; i++ {
		require.True(t, q.Enqueue("count", func(context.Context) error {
			count.Add(1)
			return nil
		}))
	}

	require.NoError(t, q.Shutdown(context.Background()))
	require.Equal(t, int32(5), count.Load())
}

func TestQueueSurvivesFailuresAndPanics(t *testing.T) {
	q := NewQueue(Config{Workers: 1, QueueSize: 4})

	var ran atomic.Bool
	require.True(t, q.Enqueue("fail", func(context.Context) error { return errors.New("boom") }))
	require.True(t, q.Enqueue("panic", func(context.Context) error { panic("kaboom") }))
	require.True(t, q.Enqueue("after", func(context.Context) error {
		ran.Store(true)
		return nil
	}))

	require.NoError(t, q.Shutdown(context.Background()))
	require.True(t, ran.Load())
}

func TestQueueEnqueueNeverBlocks(t *testing.T) {
	q := NewQueue(Config{Workers: 1, QueueSize: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, q.Enqueue("block", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	require.True(t, q.Enqueue("buffered", func(context.Context) error { return nil }))
	require.False(t, q.Enqueue("overflow", func(context.Context) error { return nil }))

	close(release)
	require.NoError(t, q.Shutdown(context.Background()))
}

func TestQueueTaskTimeout(t *testing.T) {
	q := NewQueue(Config{Workers: 1, TaskTimeout: 20 * time.Millisecond})

	var deadlineHit atomic.Bool
	require.True(t, q.Enqueue("slow", func(ctx context.Context) error {
		<-ctx.Done()
		deadlineHit.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	}))

	require.NoError(t, q.Shutdown(context.Background()))
	require.True(t, deadlineHit.Load())
}

func TestQueueShutdown(t *testing.T) {
	q := NewQueue(Config{Workers: 1})
	require.NoError(t, q.Shutdown(context.Background()))

	require.False(t, q.Enqueue("late", func(context.Context) error { return nil }))
	require.ErrorIs(t, q.Shutdown(context.Background()), ErrQueueClosed)
}

func TestQueueShutdownDeadlineCancelsTasks(t *testing.T) {
	q := NewQueue(Config{Workers: 1, TaskTimeout: time.Minute})

	started := make(chan struct{})
	require.True(t, q.Enqueue("stuck", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.Shutdown(ctx), context.DeadlineExceeded)
}
