package hwi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-homeworks/logger"
)

// ErrTaskManagerStopped is returned when a task is started on a stopped TaskManager.
var ErrTaskManagerStopped = errors.New("task manager already stopped")

// TaskFunc represents one iteration of a task managed by the TaskManager.
// It should return true to run again, or false to stop the goroutine.
type TaskFunc func(ctx context.Context) bool

// TaskManager manages the lifecycle of the goroutines of a HomeWorks connection.
//
// Every task receives the manager context, which is canceled by Stop. Wait blocks until
// every task returned and then re-arms the manager so it can be reused for the next
// connection attempt.
//
// Example Usage:
//
//	taskMgr := hwi.NewTaskManager(ctx, logger)
//
//	_ = taskMgr.Start("dispatcher", func(ctx context.Context) bool {
//	    // ... task logic ...
//	    return true // Return true to continue running, false to stop
//	})
//
//	taskMgr.Stop()
//	taskMgr.Wait()
type TaskManager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protect ctx and cancel
	taskMu sync.RWMutex // protect task creation during Wait()
}

// NewTaskManager creates a new TaskManager with the given context as the parent context and logger.
func NewTaskManager(ctx context.Context, l logger.Logger) *TaskManager {
	if l == nil {
		l = logger.GetLogger()
	}

	mgr := &TaskManager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context passed to the tasks.
func (mgr *TaskManager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start starts a new goroutine that calls taskFunc until it returns false or the manager is stopped.
func (mgr *TaskManager) Start(name string, taskFunc TaskFunc) error {
	mgr.logger.Debug("start task", "name", name)

	return mgr.spawn(name, func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if !mgr.callWithRecover(name, ctx, taskFunc) {
					return
				}
			}
		}
	})
}

// Go starts a new goroutine that runs fn once.
func (mgr *TaskManager) Go(name string, fn func(ctx context.Context)) error {
	mgr.logger.Debug("start one-shot task", "name", name)

	return mgr.spawn(name, func(ctx context.Context) {
		mgr.callWithRecover(name, ctx, func(ctx context.Context) bool {
			fn(ctx)
			return false
		})
	})
}

// Stop signals all running goroutines.
func (mgr *TaskManager) Stop() {
	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait waits for all goroutines to terminate.
func (mgr *TaskManager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	// recreate context with lock
	mgr.mu.Lock()
	mgr.cancel()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// TaskCount returns the number of currently running goroutines.
func (mgr *TaskManager) TaskCount() int {
	return int(mgr.count.Load())
}

func (mgr *TaskManager) spawn(name string, body func(ctx context.Context)) error {
	mgr.taskMu.RLock()
	defer mgr.taskMu.RUnlock()

	ctx := mgr.Context()
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s", ErrTaskManagerStopped, name)
	}

	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer func() {
			mgr.count.Add(-1)
			mgr.logger.Debug(name+" task terminated", "task_count", mgr.TaskCount())
			mgr.wg.Done()
		}()

		body(ctx)
	}()

	return nil
}

// callWithRecover calls taskFunc with panic protection; a panic stops the task.
func (mgr *TaskManager) callWithRecover(name string, ctx context.Context, taskFunc TaskFunc) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			ok = false
		}
	}()

	return taskFunc(ctx)
}
