package hwi

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-homeworks/logger"
)

// ConnState represents the stages of a HomeWorks session.
type ConnState uint32

// HomeWorks connection states.
//
// The happy path is NotConnected -> ConnectedNotLoggedIn -> ReadyForLoginAttempt -> LoggedIn -> ReadyForCommand.
// ReadyForCommand is re-entered every time the processor prints its idle prompt, and Disconnecting is
// reachable from every state.
const (
	// NotConnectedState indicates that no transport connection is established.
	NotConnectedState ConnState = iota
	// ConnectedNotLoggedInState indicates that the transport is connected but the login prompt has not been seen.
	ConnectedNotLoggedInState
	// ReadyForLoginAttemptState indicates that the processor printed its login prompt.
	ReadyForLoginAttemptState
	// LoginIncorrectState indicates that the processor rejected the credentials.
	LoginIncorrectState
	// LoggedInState indicates that the processor accepted the credentials.
	LoggedInState
	// ReadyForCommandState indicates that the processor printed its idle prompt and accepts one command.
	ReadyForCommandState
	// DisconnectingState indicates that the session is being closed, locally or by the processor.
	DisconnectingState
)

// IsNotConnected returns if the current state is not connected.
func (cs ConnState) IsNotConnected() bool { return cs == NotConnectedState }

// IsLoggedIn returns true once the credentials were accepted, including every later ready-for-command state.
func (cs ConnState) IsLoggedIn() bool { return cs == LoggedInState || cs == ReadyForCommandState }

// IsReadyForCommand returns if the processor is idle and accepts a command.
func (cs ConnState) IsReadyForCommand() bool { return cs == ReadyForCommandState }

// IsDisconnecting returns if the session is being closed.
func (cs ConnState) IsDisconnecting() bool { return cs == DisconnectingState }

// String returns string representation of the state.
func (cs ConnState) String() string {
	switch cs {
	case NotConnectedState:
		return "not-connected"
	case ConnectedNotLoggedInState:
		return "connected-not-logged-in"
	case ReadyForLoginAttemptState:
		return "ready-for-login-attempt"
	case LoginIncorrectState:
		return "login-incorrect"
	case LoggedInState:
		return "logged-in"
	case ReadyForCommandState:
		return "ready-for-command"
	case DisconnectingState:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// ConnStateChangeHandler is a function type that represents a handler for connection state changes.
//
// Note: the handler is invoked synchronously by the goroutine that changed the state, usually the
// session reader. Take care with long-running implementations and never change the state from a handler.
type ConnStateChangeHandler func(prevState ConnState, newState ConnState)

// ConnStateMgr holds the authoritative connection state of a HomeWorks connection.
//
// The state is stored atomically so it can be read from any goroutine, while transitions are
// serialized and reported to the registered handlers in registration order.
type ConnStateMgr struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    atomic.Uint32
	logger   logger.Logger
	handlers []ConnStateChangeHandler
}

// NewConnStateMgr creates a new ConnStateMgr instance, initializing it to the NotConnectedState.
//
// It accepts optional ConnStateChangeHandler functions that will be invoked when the connection state changes.
func NewConnStateMgr(l logger.Logger, handlers ...ConnStateChangeHandler) *ConnStateMgr {
	if l == nil {
		l = logger.GetLogger()
	}

	mgr := &ConnStateMgr{
		logger:   l,
		handlers: make([]ConnStateChangeHandler, 0, len(handlers)),
	}
	mgr.cond = sync.NewCond(&mgr.mu)
	mgr.state.Store(uint32(NotConnectedState))
	mgr.AddHandler(handlers...)

	return mgr
}

// State returns the current connection state.
func (cs *ConnStateMgr) State() ConnState {
	return ConnState(cs.state.Load())
}

// AddHandler adds one or more ConnStateChangeHandler functions to be invoked on state changes.
func (cs *ConnStateMgr) AddHandler(handlers ...ConnStateChangeHandler) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			cs.handlers = append(cs.handlers, h)
		}
	}
}

// ToState transitions the connection state to newState and returns true when the state changed.
//
// Setting the current state again is a no-op and doesn't invoke the handlers.
func (cs *ConnStateMgr) ToState(newState ConnState) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	prevState := cs.State()
	if prevState == newState {
		return false
	}

	cs.state.Store(uint32(newState))
	cs.cond.Broadcast()

	cs.logger.Debug("connection state changed", "prev_state", prevState, "state", newState)
	for _, handler := range cs.handlers {
		handler(prevState, newState)
	}

	return true
}

// WaitState waits for the connection state to reach the specified state or until the context is done.
// It returns nil if the desired state is reached, or an error if the context is canceled or times out.
func (cs *ConnStateMgr) WaitState(ctx context.Context, state ConnState) error {
	return cs.WaitFunc(ctx, func(cur ConnState) bool { return cur == state })
}

// WaitFunc waits until cond reports true for the current state or until the context is done.
func (cs *ConnStateMgr) WaitFunc(ctx context.Context, cond func(ConnState) bool) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cond(cs.State()) {
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		cs.mu.Lock()
		defer cs.mu.Unlock()
		cs.cond.Broadcast()
	})
	defer stop()

	for !cond(cs.State()) {
		if err := ctx.Err(); err != nil {
			return err
		}
		cs.cond.Wait()
	}

	return nil
}

// IsNotConnected returns if the current state is not connected.
func (cs *ConnStateMgr) IsNotConnected() bool {
	return cs.State().IsNotConnected()
}

// IsReadyForCommand returns if the current state is ready-for-command.
func (cs *ConnStateMgr) IsReadyForCommand() bool {
	return cs.State().IsReadyForCommand()
}
