package hwiconn

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-homeworks/hwi"
	"github.com/arloliu/go-homeworks/logger"
)

// Markers pushed through the response queue; they are never delivered to the handler.
const (
	// endOfStreamKind marks the last response of a run.
	endOfStreamKind hwi.ResponseKind = 0
	// sessionStartKind marks the first response of a session and re-enables delivery.
	sessionStartKind hwi.ResponseKind = 255
)

// ResponseHandler receives every response of the connection in emission order.
// Returning false stops the delivery for the current session.
type ResponseHandler func(msg hwi.ResponseMessage) bool

// Coordinator is the entry point of a HomeWorks connection.
//
// It owns the request and response queues, runs the retry supervisor that connects, logs in
// and serves sessions, and dispatches responses to the registered handler on its own goroutine
// so slow handlers never block socket reads.
//
// Requests can be enqueued at any time; they stay queued across reconnects until a session
// writes them.
type Coordinator struct {
	pctx      context.Context
	cfg       *ConnectionConfig
	logger    logger.Logger
	stateMgr  *hwi.ConnStateMgr
	transport *Transport
	taskMgr   *hwi.TaskManager
	metrics   ConnectionMetrics

	handlerMu sync.RWMutex
	handler   ResponseHandler

	// mu protects the fields below.
	mu        sync.Mutex
	session   *Session
	running   bool
	cancelRun context.CancelFunc
	loggedIn  chan struct{}
	done      chan struct{}
	termErr   error

	// dispatching is owned by the dispatcher goroutine.
	dispatching bool

	shutdown atomic.Bool
}

// NewCoordinator creates a Coordinator with the given parent context and configuration.
//
// Canceling ctx terminates the connection. A nil cfg returns hwi.ErrConnConfigNil.
func NewCoordinator(ctx context.Context, cfg *ConnectionConfig) (*Coordinator, error) {
	if cfg == nil {
		return nil, hwi.ErrConnConfigNil
	}

	l := cfg.Logger()
	c := &Coordinator{
		pctx:      ctx,
		cfg:       cfg,
		logger:    l,
		stateMgr:  hwi.NewConnStateMgr(l),
		transport: NewTransport(),
		taskMgr:   hwi.NewTaskManager(ctx, l),
	}

	return c, nil
}

// SetResponseHandler registers the response handler, replacing the previous one.
// Responses dispatched while no handler is registered are dropped.
func (c *Coordinator) SetResponseHandler(handler ResponseHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()

	c.handler = handler
}

// AddConnStateChangeHandler adds handlers invoked on every connection state change.
func (c *Coordinator) AddConnStateChangeHandler(handlers ...hwi.ConnStateChangeHandler) {
	c.stateMgr.AddHandler(handlers...)
}

// Connect starts connecting to the processor and blocks until the first login succeeded.
//
// Connect returns nil once logged in. It returns the terminal error when the connection gave
// up before, such as hwi.ErrRetriesExhausted, and ctx.Err() when ctx
// is done first; the connection keeps retrying in the background in that case.
//
// It returns hwi.ErrAlreadyConnected while a previous Connect is still running.
func (c *Coordinator) Connect(ctx context.Context, addr hwi.ServerAddress, creds hwi.Credentials) error {
	dialer := c.cfg.Dialer()
	if _, ok := dialer.(*TCPDialer); ok {
		if err := addr.Validate(); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return hwi.ErrAlreadyConnected
	}

	// re-arm the task manager after a previous run
	c.taskMgr.Wait()

	runCtx, cancel := context.WithCancel(c.taskMgr.Context())
	loggedIn := make(chan struct{})
	done := make(chan struct{})
	dispatcherDone := make(chan struct{})

	c.running = true
	c.cancelRun = cancel
	c.loggedIn = loggedIn
	c.done = done
	c.termErr = nil
	c.shutdown.Store(false)
	c.dispatching = true
	c.transport.ResetResponses()
	c.mu.Unlock()

	c.logger.Info("connecting to processor", "method", "Connect", "address", addr.String(), "username", creds.Username)

	err := c.taskMgr.Go("dispatcher", func(ctx context.Context) {
		defer close(dispatcherDone)
		c.dispatchLoop(ctx)
	})
	if err == nil {
		err = c.taskMgr.Go("supervisor", func(context.Context) {
			c.run(runCtx, addr, creds, dispatcherDone)
		})
	}
	if err != nil {
		cancel()
		c.mu.Lock()
		c.running = false
		c.termErr = err
		close(done)
		c.mu.Unlock()

		return err
	}

	select {
	case <-loggedIn:
		return nil
	case <-done:
		return c.terminalErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue adds a request to the request queue.
//
// The request is written once the processor is idle and every request with a lower priority
// value, or equal priority and earlier arrival, was written. If the processor is idle right now
// the writer is woken immediately.
func (c *Coordinator) Enqueue(req hwi.RequestMessage) error {
	if err := req.Validate(); err != nil {
		return err
	}

	c.transport.EnqueueRequest(req)

	if c.stateMgr.IsReadyForCommand() {
		if sess := c.Session(); sess != nil {
			sess.wake()
		}
	}

	return nil
}

// EnqueueCommand enqueues the command NAME,arg1,...,argN at hwi.DefaultPriority.
func (c *Coordinator) EnqueueCommand(name string, args ...string) error {
	return c.Enqueue(hwi.NewCommandRequest(name, args...))
}

// Disconnect closes the current session and stops reconnecting.
//
// The quit command is written if a session is open. Disconnect waits up to the close timeout
// for the connection goroutines to finish. It is idempotent and returns nil when not connected.
func (c *Coordinator) Disconnect() error {
	c.mu.Lock()
	if !c.running || c.shutdown.Load() {
		done := c.done
		c.mu.Unlock()
		c.waitDone(done)

		return nil
	}

	c.shutdown.Store(true)
	sess := c.session
	cancel := c.cancelRun
	done := c.done
	c.mu.Unlock()

	c.logger.Debug("disconnect requested", "method", "Disconnect", "has_session", sess != nil)

	if sess != nil {
		_ = sess.Disconnect()
	} else {
		c.stateMgr.ToState(hwi.DisconnectingState)
		c.transport.PushResponse(hwi.NewStateUpdate(hwi.DisconnectingState))
	}
	cancel()

	c.waitDone(done)

	return nil
}

func (c *Coordinator) waitDone(done chan struct{}) {
	if done == nil {
		return
	}

	timer := time.NewTimer(c.cfg.CloseTimeout())
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		c.logger.Warn("close timeout, stop remaining tasks", "method", "Disconnect", "timeout", c.cfg.CloseTimeout())
		c.taskMgr.Stop()
		<-done
	}
}

// State returns the current connection state.
func (c *Coordinator) State() hwi.ConnState {
	return c.stateMgr.State()
}

// WaitState waits until the connection reaches state or ctx is done.
func (c *Coordinator) WaitState(ctx context.Context, state hwi.ConnState) error {
	return c.stateMgr.WaitState(ctx, state)
}

// Wait blocks until the connection terminated and returns the terminal error.
//
// It returns nil after Disconnect, the fatal error after the connection gave up, and
// hwi.ErrNotConnected if Connect was never called.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return hwi.ErrNotConnected
	}

	select {
	case <-done:
		return c.terminalErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Session returns the current session, or nil when no session is open.
func (c *Coordinator) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session
}

// Metrics returns the connection metrics.
func (c *Coordinator) Metrics() *ConnectionMetrics {
	return &c.metrics
}

// Transport returns the request and response queues.
func (c *Coordinator) Transport() *Transport {
	return c.transport
}

func (c *Coordinator) terminalErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.termErr
}

// attachSession makes sess the current session. It returns false when Disconnect was called.
func (c *Coordinator) attachSession(sess *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown.Load() {
		return false
	}

	c.session = sess

	// lines read by the previous session are not replayed to the new one
	if dropped := c.transport.DropStaleData(); dropped > 0 {
		c.logger.Debug("drop stale responses", "method", "attachSession", "dropped", dropped)
	}
	c.transport.PushResponse(hwi.ResponseMessage{Kind: sessionStartKind})

	return true
}

func (c *Coordinator) detachSession(sess *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == sess {
		c.session = nil
	}
}

func (c *Coordinator) markLoggedIn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.loggedIn:
	default:
		close(c.loggedIn)
	}
}

// run supervises the connection and finishes the run once the supervisor gave up or was stopped.
func (c *Coordinator) run(ctx context.Context, addr hwi.ServerAddress, creds hwi.Credentials, dispatcherDone chan struct{}) {
	err := c.supervise(ctx, addr, creds)

	c.stateMgr.ToState(hwi.NotConnectedState)
	if err != nil {
		c.logger.Error("connection terminated", "method", "run", "error", err)
		c.transport.PushResponse(hwi.ResponseMessage{
			Kind:  hwi.StateUpdateResponse,
			State: hwi.NotConnectedState,
			Err:   err,
		})
	} else {
		c.logger.Info("connection closed", "method", "run")
	}

	c.transport.PushResponse(hwi.ResponseMessage{Kind: endOfStreamKind})
	<-dispatcherDone

	c.mu.Lock()
	c.cancelRun()
	c.termErr = err
	c.running = false
	c.session = nil
	close(c.done)
	c.mu.Unlock()
}

func (c *Coordinator) dispatchLoop(ctx context.Context) {
	for {
		msg, err := c.transport.PopResponse(ctx)
		if err != nil {
			return
		}

		if !c.dispatch(msg) {
			return
		}
	}
}

// dispatch delivers msg and returns false when the dispatcher should exit.
func (c *Coordinator) dispatch(msg hwi.ResponseMessage) bool {
	switch msg.Kind {
	case endOfStreamKind:
		return false
	case sessionStartKind:
		c.dispatching = true
		return true
	}

	// the terminal message is always delivered
	if msg.IsFatal() {
		c.deliver(msg)
		return true
	}

	if !c.dispatching {
		c.logger.Debug("dispatching stopped, drop response", "method", "dispatch", "response", msg)
		return true
	}

	if !c.deliver(msg) || msg.IsState(hwi.DisconnectingState) {
		c.dispatching = false
	}

	return true
}

func (c *Coordinator) deliver(msg hwi.ResponseMessage) (cont bool) {
	c.handlerMu.RLock()
	handler := c.handler
	c.handlerMu.RUnlock()

	if handler == nil {
		return true
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic in response handler", "method", "deliver", "panic", fmt.Sprint(r))
			cont = true
		}
	}()

	return handler(msg)
}
