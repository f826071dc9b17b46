package task

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestEnqueueRejectsWhenFull(t *testing.T) {
	t.Parallel()
	queue := NewTaskQueue(2, nil)

	require.NoError(t, queue.Enqueue(NewFunc("sync_push", noop)))
	require.NoError(t, queue.Enqueue(NewFunc("sync_push", noop)))

	err := queue.Enqueue(NewFunc("sync_push", noop))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Len(t, queue.GetChannel(), 2)
}

func TestCloseKeepsQueuedTasksReadable(t *testing.T) {
	t.Parallel()
	queue := NewTaskQueue(2, nil)
	first := NewFunc("sync_push", noop)
	require.NoError(t, queue.Enqueue(first))

	queue.Close()
	queue.Close()

	assert.ErrorIs(t, queue.Enqueue(NewFunc("sync_push", noop)), ErrQueueClosed)

	got, ok := <-queue.GetChannel()
	require.True(t, ok)
	assert.Equal(t, first.ID(), got.ID())

	_, ok = <-queue.GetChannel()
	assert.False(t, ok)
}

func TestConcurrentEnqueueAndClose(t *testing.T) {
	t.Parallel()
	queue := NewTaskQueue(64, nil)

	var wg sync.WaitGroup
	results := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- queue.Enqueue(NewFunc("sync_push", noop))
		}()
	}
	queue.Close()
	wg.Wait()
	close(results)

	accepted := 0
	for err := range results {
		if err == nil {
			accepted++
			continue
		}
		assert.ErrorIs(t, err, ErrQueueClosed)
	}
	assert.Len(t, queue.GetChannel(), accepted)
}

func TestFuncTask(t *testing.T) {
	t.Parallel()
	called := false
	task := NewFunc("sync_push", func(context.Context) error {
		called = true
		return nil
	})

	assert.NotEqual(t, uuid.Nil, task.ID())
	assert.Equal(t, "sync_push", task.Type())
	assert.NoError(t, task.Execute(context.Background()))
	assert.True(t, called)
}
