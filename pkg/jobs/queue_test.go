package jobs

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

func TestQueueDeliversBufferedJobsBeforeStop(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	q := NewQueue("notify", func(_ context.Context, job Job[string]) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, job.Payload)
		return nil
	}, QueueConfig{Workers: 2})

	q.Start(context.Background())
	for _, payload := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job[string]{ID: payload, Payload: payload}))
	}
	q.Stop()

	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
	assert.ErrorIs(t, q.Enqueue(Job[string]{ID: "late"}), ErrQueueClosed)
}

func TestQueueRetriesThenDrops(t *testing.T) {
	var attempts atomic.Int32
	dropped := make(chan string, 1)

	q := NewQueue("notify", func(_ context.Context, job Job[int]) error {
		attempts.Add(1)
		return errors.New("sink unavailable")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnDrop:     func(jobID string, err error) { dropped <- jobID },
	})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job[int]{ID: "job-1", Payload: 1}))

	select {
	case id := <-dropped:
		assert.Equal(t, "job-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("job was never dropped")
	}
	q.Stop()
	assert.EqualValues(t, 3, attempts.Load())
}

func TestQueueRetrySucceeds(t *testing.T) {
	var attempts atomic.Int32
	done := make(chan struct{})

	q := NewQueue("notify", func(_ context.Context, job Job[int]) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job[int]{ID: "job-1"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retry never ran")
	}
	q.Stop()
	assert.EqualValues(t, 2, attempts.Load())
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("notify", func(context.Context, Job[int]) error { return nil }, QueueConfig{})
	assert.ErrorIs(t, q.Enqueue(Job[int]{ID: "x"}), ErrQueueClosed)
}
