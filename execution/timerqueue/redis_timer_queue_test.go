package timerqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/pkg/kernel"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestTimerQueue(t *testing.T, handler WakeHandler) *RedisTimerQueue {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisTimerQueue(client, handler)
}

func TestScheduleAndCancel(t *testing.T) {
	q := newTestTimerQueue(t, nil)
	ctx := context.Background()
	execID := kernel.NewExecutionID(uuid.New().String())

	require.NoError(t, q.Schedule(ctx, execID, "wait-1", time.Hour))
	require.NoError(t, q.Schedule(ctx, execID, "wait-2", 2*time.Hour))

	count, err := q.GetPendingCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	require.NoError(t, q.Cancel(ctx, execID))

	count, err = q.GetPendingCount(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestDueWakeReachesHandler(t *testing.T) {
	fired := make(chan execution.TimerFired, 1)
	q := newTestTimerQueue(t, func(_ context.Context, event execution.TimerFired) error {
		fired <- event
		return nil
	})
	ctx := context.Background()
	execID := kernel.NewExecutionID(uuid.New().String())

	require.NoError(t, q.Schedule(ctx, execID, "wait-1", 0))
	require.NoError(t, q.processDueWakes(ctx))

	select {
	case event := <-fired:
		require.Equal(t, execID, event.ExecutionID)
		require.Equal(t, "wait-1", event.NodeID)
	case <-time.After(2 * time.Second):
		t.Fatal("due timer wake never reached the handler")
	}

	require.Eventually(t, func() bool {
		count, err := q.GetPendingCount(ctx)
		return err == nil && count == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStartStopWorkerIsIdempotent(t *testing.T) {
	q := newTestTimerQueue(t, nil)
	ctx := context.Background()

	q.StartWorker(ctx)
	q.StartWorker(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.StopWorker()
		}()
	}
	wg.Wait()
}
