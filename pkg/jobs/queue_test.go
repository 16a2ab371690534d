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

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("smtp down")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "R-0001", Kind: "notification.created"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestQueueDoesNotRetryPermanentErrors(t *testing.T) {
	var calls int32
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return Permanent(errors.New("no recipient"))
	}, QueueConfig{MaxRetries: 5, RetryDelay: time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "A-0001"}))
	time.Sleep(20 * time.Millisecond)
	q.Stop()
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestQueueDrainsBufferedJobsOnStop(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	release := make(chan struct{})
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		<-release
		mu.Lock()
		seen = append(seen, job.ID)
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4})
	q.Start(context.Background())

	for _, id := range []string{"R-0001", "R-0002", "R-0003"} {
		require.NoError(t, q.Enqueue(Job{ID: id}))
	}
	close(release)
	q.Stop()

	assert.Equal(t, []string{"R-0001", "R-0002", "R-0003"}, seen)
	assert.ErrorIs(t, q.Enqueue(Job{ID: "R-0004"}), ErrQueueClosed)
}

func TestQueueRejectsBeforeStartAndWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	assert.ErrorIs(t, q.Enqueue(Job{ID: "early"}), ErrQueueClosed)

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	require.Eventually(t, func() bool { return len(q.jobs) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(Job{ID: "b"}))
	assert.Error(t, q.Enqueue(Job{ID: "c"}))

	close(block)
	q.Stop()
}

func TestQueueRecoversPanickingHandler(t *testing.T) {
	var calls int32
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		panic("template exploded")
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "CERT-0001"}))
	time.Sleep(20 * time.Millisecond)
	q.Stop()
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
	assert.False(t, IsPermanent(errors.New("x")))
}
