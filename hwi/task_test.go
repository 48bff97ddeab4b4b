package hwi

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskManager_Start(t *testing.T) {
	require := require.New(t)

	mgr := NewTaskManager(context.Background(), nil)

	var calls atomic.Int32
	require.NoError(mgr.Start("counter", func(ctx context.Context) bool {
		return calls.Add(1) < 3
	}))

	mgr.Wait()
	require.Equal(int32(3), calls.Load())
	require.Equal(0, mgr.TaskCount())
}

func TestTaskManager_Stop(t *testing.T) {
	require := require.New(t)

	mgr := NewTaskManager(context.Background(), nil)

	started := make(chan struct{})
	require.NoError(mgr.Go("blocker", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}))
	require.NoError(mgr.Start("loop", func(ctx context.Context) bool {
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Millisecond):
		}
		return true
	}))

	<-started
	require.Equal(2, mgr.TaskCount())

	mgr.Stop()
	require.ErrorIs(mgr.Go("late", func(context.Context) {}), ErrTaskManagerStopped)

	mgr.Wait()
	require.Equal(0, mgr.TaskCount())

	// the manager is re-armed after Wait
	done := make(chan struct{})
	require.NoError(mgr.Go("again", func(context.Context) { close(done) }))
	<-done
	mgr.Wait()
}

func TestTaskManager_PanicRecovery(t *testing.T) {
	assert := assert.New(t)

	mgr := NewTaskManager(context.Background(), nil)

	assert.NoError(mgr.Start("panicky", func(ctx context.Context) bool {
		panic("boom")
	}))
	assert.NoError(mgr.Go("panicky-once", func(ctx context.Context) {
		panic("boom")
	}))

	mgr.Wait()
	assert.Equal(0, mgr.TaskCount())
}

func TestTaskManager_ParentCancel(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	mgr := NewTaskManager(ctx, nil)

	require.NoError(mgr.Go("waiter", func(ctx context.Context) { <-ctx.Done() }))
	cancel()
	mgr.Wait()

	require.ErrorIs(mgr.Go("after-parent", func(context.Context) {}), ErrTaskManagerStopped)
}
