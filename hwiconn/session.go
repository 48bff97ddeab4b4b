package hwiconn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/go-homeworks/hwi"
	"github.com/arloliu/go-homeworks/logger"
)

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Session owns exactly one open connection to a HomeWorks processor.
//
// A Session performs the login handshake and then runs a reader and a paced writer until
// the connection fails, the processor closes the link, or Disconnect is called. It never
// reconnects; that is the job of the Coordinator.
type Session struct {
	id        uuid.UUID
	conn      io.ReadWriteCloser
	reader    *lineReader
	transport *Transport
	stateMgr  *hwi.ConnStateMgr
	metrics   *ConnectionMetrics
	cfg       *ConnectionConfig
	logger    logger.Logger

	writeMu sync.Mutex

	// idle is set on every idle prompt and consumed by the writer, so at most one
	// request is written per prompt.
	idle   atomic.Bool
	wakeCh chan struct{}

	disconnectOnce sync.Once
	closeOnce      sync.Once
	disconnected   atomic.Bool
}

func newSession(
	conn io.ReadWriteCloser,
	transport *Transport,
	stateMgr *hwi.ConnStateMgr,
	metrics *ConnectionMetrics,
	cfg *ConnectionConfig,
) *Session {
	id := uuid.New()

	return &Session{
		id:        id,
		conn:      conn,
		reader:    newLineReader(conn),
		transport: transport,
		stateMgr:  stateMgr,
		metrics:   metrics,
		cfg:       cfg,
		logger:    cfg.Logger().With("session_id", id.String()),
		wakeCh:    make(chan struct{}, 1),
	}
}

// ID returns the unique identifier of the session.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// IsDisconnected returns true once Disconnect was called.
func (s *Session) IsDisconnected() bool {
	return s.disconnected.Load()
}

// Login performs the login handshake.
//
// It writes the credentials on every login prompt and returns nil once the processor
// accepted them. A rejection is reported as a LoginIncorrect state update and Login keeps
// waiting for the processor to prompt again; credentials are only written in reply to a prompt.
// It returns hwi.ErrLoginTimeout, wrapping hwi.ErrLoginIncorrect after a rejection, when the
// handshake didn't finish within the login timeout.
//
// A processor with login disabled prints the idle prompt right away; Login returns nil
// without writing the credentials in that case.
func (s *Session) Login(ctx context.Context, creds hwi.Credentials) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LoginTimeout())
	defer cancel()

	stop := context.AfterFunc(ctx, s.closeConn)
	defer stop()

	rejected := false
	for {
		line, err := s.reader.ReadLine()
		if err != nil {
			return s.loginReadErr(ctx, err, rejected)
		}

		msg, closing := s.classify(line)
		if closing {
			s.setState(hwi.DisconnectingState)
			return hwi.ErrServerClosed
		}

		if msg.IsData() {
			s.pushData(msg)
			continue
		}

		s.setState(msg.State)

		switch msg.State {
		case hwi.ReadyForLoginAttemptState:
			s.logger.Debug("login prompt received, send credentials", "method", "Login", "credentials", creds)
			if err := s.writeLine(creds.LoginLine()); err != nil {
				return fmt.Errorf("write credentials: %w", err)
			}

		case hwi.LoggedInState:
			s.metrics.incLoginCount()
			s.logger.Info("logged in", "method", "Login", "username", creds.Username)

			return nil

		case hwi.LoginIncorrectState:
			rejected = true
			s.metrics.incLoginFailCount()
			s.logger.Warn("login rejected by processor, wait for next prompt", "method", "Login", "username", creds.Username)

		case hwi.ReadyForCommandState:
			s.metrics.incLoginCount()
			s.idle.Store(true)
			s.logger.Info("idle prompt before login, processor doesn't require login", "method", "Login")

			return nil
		}
	}
}

func (s *Session) loginReadErr(ctx context.Context, err error, rejected bool) error {
	if s.disconnected.Load() {
		return hwi.ErrDisconnected
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			s.metrics.incLoginFailCount()
			if rejected {
				return fmt.Errorf("%w after %s: %w", hwi.ErrLoginTimeout, s.cfg.LoginTimeout(), hwi.ErrLoginIncorrect)
			}

			return fmt.Errorf("%w after %s", hwi.ErrLoginTimeout, s.cfg.LoginTimeout())
		}

		return ctxErr
	}

	return fmt.Errorf("read login response: %w", err)
}

// Serve runs the reader and the paced writer until one of them fails.
//
// It returns hwi.ErrDisconnected after Disconnect, hwi.ErrServerClosed when the processor
// announced it is closing the link, and the transport error otherwise. Canceling ctx closes
// the connection.
func (s *Session) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	stop := context.AfterFunc(gctx, s.closeConn)
	defer stop()

	g.Go(s.readLoop)
	g.Go(func() error { return s.writeLoop(gctx) })

	err := g.Wait()
	if s.disconnected.Load() {
		return hwi.ErrDisconnected
	}

	return err
}

func (s *Session) readLoop() error {
	for {
		line, err := s.reader.ReadLine()
		if err != nil {
			if s.disconnected.Load() {
				return hwi.ErrDisconnected
			}
			s.logger.Debug("failed to read line", "method", "readLoop", "error", err)

			return fmt.Errorf("read line: %w", err)
		}

		msg, closing := s.classify(line)
		if closing {
			s.logger.Info("processor is closing the connection", "method", "readLoop", "line", msg.Data)
			s.setState(hwi.DisconnectingState)

			return hwi.ErrServerClosed
		}

		if msg.IsData() {
			s.pushData(msg)
			continue
		}

		s.setState(msg.State)
		if msg.State == hwi.ReadyForCommandState {
			s.idle.Store(true)
			s.wake()
		}
	}
}

// classify adapts a line and reports whether it is the processor's closing notice.
func (s *Session) classify(line []byte) (hwi.ResponseMessage, bool) {
	msg, err := hwi.Adapt(line)
	if err != nil {
		s.metrics.incDecodeErrCount()
		s.logger.Warn("failed to decode line, pass it through", "method", "classify", "error", err, "raw", line)
	}

	closing := msg.IsData() && strings.HasPrefix(msg.Data, hwi.ServerClosingSentinel)

	return msg, closing
}

func (s *Session) writeLoop(ctx context.Context) error {
	// the idle prompt may have been seen during login
	s.wake()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.wakeCh:
		}

		if err := s.writeNext(); err != nil {
			return err
		}
	}
}

// writeNext writes one pending request if the processor is idle.
func (s *Session) writeNext() error {
	if !s.idle.CompareAndSwap(true, false) {
		return nil
	}

	entry, ok := s.transport.dequeueEntry()
	if !ok {
		s.idle.Store(true)
		return nil
	}

	req := entry.Value
	if req.Kind == hwi.DisconnectRequest {
		s.logger.Debug("disconnect request dequeued", "method", "writeNext")
		_ = s.Disconnect()

		return hwi.ErrDisconnected
	}

	if err := s.writeLine(req.Payload); err != nil {
		s.metrics.incWriteErrCount()
		s.transport.requeue(entry)
		s.logger.Debug("failed to write request, requeued", "method", "writeNext", "request", req, "error", err)

		return fmt.Errorf("write request: %w", err)
	}

	s.metrics.incCommandSendCount()
	s.logger.Debug("request sent", "method", "writeNext", "request", req)

	return nil
}

// wake signals the writer. It writes only if the processor is idle.
func (s *Session) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// Disconnect writes the quit command and closes the connection.
//
// The state becomes Disconnecting and a matching state update is pushed to the response
// queue. Disconnect is idempotent: further calls do nothing and return nil.
func (s *Session) Disconnect() error {
	s.disconnectOnce.Do(func() {
		s.disconnected.Store(true)
		s.setState(hwi.DisconnectingState)

		if err := s.writeLine(hwi.QuitCommand); err != nil {
			s.logger.Debug("failed to write quit command", "method", "Disconnect", "error", err)
		}

		s.closeConn()
		s.logger.Debug("session disconnected", "method", "Disconnect")
	})

	return nil
}

func (s *Session) closeConn() {
	s.closeOnce.Do(func() {
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("failed to close connection", "method", "closeConn", "error", err)
		}
	})
}

func (s *Session) writeLine(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if wd, ok := s.conn.(writeDeadliner); ok {
		if err := wd.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout())); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	_, err := io.WriteString(s.conn, line+hwi.LineTerminator)

	return err
}

// setState updates the connection state and pushes the matching state update.
func (s *Session) setState(state hwi.ConnState) {
	s.stateMgr.ToState(state)
	s.metrics.incStateUpdateCount()
	s.transport.PushResponse(hwi.NewStateUpdate(state))
}

func (s *Session) pushData(msg hwi.ResponseMessage) {
	s.metrics.incResponseRecvCount()
	s.transport.PushResponse(msg)
}
