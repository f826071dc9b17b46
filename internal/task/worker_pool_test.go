package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startPool(t *testing.T, queue *TaskQueue, workers int) *WorkerPool {
	t.Helper()
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: workers}, nil)
	pool.Start()
	t.Cleanup(pool.Stop)
	return pool
}

func TestNewWorkerPoolFallsBackToOneWorker(t *testing.T) {
	t.Parallel()
	pool := NewWorkerPool(NewTaskQueue(1, nil), WorkerPoolConfig{WorkerCount: -3}, nil)
	assert.Equal(t, 1, pool.workerCount)
	assert.Equal(t, 2, DefaultWorkerPoolConfig().WorkerCount)
}

func TestWorkerPoolRunsEveryTask(t *testing.T) {
	t.Parallel()
	queue := NewTaskQueue(32, nil)
	startPool(t, queue, 4)

	var done sync.WaitGroup
	var pushed atomic.Int32
	for i := 0; i < 20; i++ {
		done.Add(1)
		require.NoError(t, queue.Enqueue(NewFunc("sync_push", func(context.Context) error {
			defer done.Done()
			pushed.Add(1)
			return nil
		})))
	}

	waitOrFail(t, &done)
	assert.Equal(t, int32(20), pushed.Load())
}

func TestWorkerPoolReportsFailuresAndPanics(t *testing.T) {
	t.Parallel()
	queue := NewTaskQueue(4, nil)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 1}, nil)

	var mu sync.Mutex
	var failed []string
	var done sync.WaitGroup
	done.Add(2)
	pool.SetErrorHandler(func(task Task, err error) {
		mu.Lock()
		failed = append(failed, task.Type()+": "+err.Error())
		mu.Unlock()
		done.Done()
	})
	pool.Start()
	t.Cleanup(pool.Stop)

	require.NoError(t, queue.Enqueue(NewFunc("sync_push", func(context.Context) error {
		return errors.New("remote unavailable")
	})))
	require.NoError(t, queue.Enqueue(NewFunc("sync_pull", func(context.Context) error {
		panic("bad payload")
	})))

	waitOrFail(t, &done)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"sync_push: remote unavailable",
		"sync_pull: task panic: bad payload",
	}, failed)
}

func TestWorkerPoolStopCancelsRunningTask(t *testing.T) {
	t.Parallel()
	queue := NewTaskQueue(1, nil)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 1}, nil)
	pool.Start()

	started := make(chan struct{})
	var cancelled atomic.Bool
	require.NoError(t, queue.Enqueue(NewFunc("sync_push", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})))

	<-started
	pool.Stop()
	pool.Stop()
	assert.True(t, cancelled.Load())
}

func TestWorkerPoolExitsWhenQueueCloses(t *testing.T) {
	t.Parallel()
	queue := NewTaskQueue(2, nil)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 2}, nil)
	pool.Start()

	var ran atomic.Int32
	for i := 0; i < 2; i++ {
		require.NoError(t, queue.Enqueue(NewFunc("sync_push", func(context.Context) error {
			ran.Add(1)
			return nil
		})))
	}
	queue.Close()

	stopped := make(chan struct{})
	go func() {
		pool.wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not exit after the queue closed")
	}
	assert.Equal(t, int32(2), ran.Load())
	pool.Stop()
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tasks")
	}
}
