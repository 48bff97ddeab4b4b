package hwiconn

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-homeworks/hwi"
)

type brokenConn struct {
	io.Reader
	closed atomic.Bool
}

func (c *brokenConn) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func (c *brokenConn) Close() error {
	c.closed.Store(true)
	return nil
}

func newTestSession(t *testing.T, conn io.ReadWriteCloser, opts ...ConnOption) (*Session, *Transport) {
	t.Helper()

	cfg, err := NewConnectionConfig(opts...)
	require.NoError(t, err)

	tr := NewTransport()

	return newSession(conn, tr, hwi.NewConnStateMgr(nil), &ConnectionMetrics{}, cfg), tr
}

func TestSession_WriteFailureRequeues(t *testing.T) {
	require := require.New(t)

	sess, tr := newTestSession(t, &brokenConn{Reader: strings.NewReader("")})

	tr.EnqueueRequest(hwi.NewCommandRequest("A"))
	tr.EnqueueRequest(hwi.NewCommandRequest("B"))

	// not idle, nothing is written
	require.NoError(sess.writeNext())
	require.Equal(2, tr.PendingRequests())

	sess.idle.Store(true)
	require.ErrorContains(sess.writeNext(), "write request")
	require.Equal(uint64(1), sess.metrics.WriteErrCount.Load())

	// the failed request keeps its position
	req, ok := tr.DequeueRequest()
	require.True(ok)
	require.Equal("A", req.Payload)
	req, ok = tr.DequeueRequest()
	require.True(ok)
	require.Equal("B", req.Payload)
}

func TestSession_LoginIncorrect(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer server.Close()

	sess, tr := newTestSession(t, client)

	go func() {
		r := bufio.NewReader(server)
		_, _ = server.Write([]byte("LOGIN: "))
		line, _ := r.ReadString('\n')
		if line != testCreds.LoginLine()+"\r\n" {
			return
		}
		_, _ = server.Write([]byte("login incorrect\r\nLOGIN: "))
		line, _ = r.ReadString('\n')
		if line == testCreds.LoginLine()+"\r\n" {
			_, _ = server.Write([]byte("login successful\r\n"))
		}
	}()

	require.NoError(sess.Login(context.Background(), testCreds))
	require.Equal(hwi.LoggedInState, sess.stateMgr.State())
	require.Equal(uint64(1), sess.metrics.LoginFailCount.Load())
	require.Equal(uint64(1), sess.metrics.LoginCount.Load())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for _, want := range []hwi.ConnState{
		hwi.ReadyForLoginAttemptState,
		hwi.LoginIncorrectState,
		hwi.ReadyForLoginAttemptState,
		hwi.LoggedInState,
	} {
		msg, err := tr.PopResponse(ctx)
		require.NoError(err)
		require.True(msg.IsState(want), msg.String())
	}
}

func TestSession_LoginIncorrectTimeout(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer server.Close()

	sess, _ := newTestSession(t, client, WithLoginTimeout(100*time.Millisecond))

	go func() {
		r := bufio.NewReader(server)
		_, _ = server.Write([]byte("LOGIN: "))
		_, _ = r.ReadString('\n')
		_, _ = server.Write([]byte("login incorrect\r\n"))
	}()

	err := sess.Login(context.Background(), testCreds)
	require.ErrorIs(err, hwi.ErrLoginTimeout)
	require.ErrorIs(err, hwi.ErrLoginIncorrect)
	require.Equal(hwi.LoginIncorrectState, sess.stateMgr.State())
}

func TestSession_LoginTimeout(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer server.Close()

	sess, _ := newTestSession(t, client, WithLoginTimeout(50*time.Millisecond))

	start := time.Now()
	err := sess.Login(context.Background(), testCreds)
	require.ErrorIs(err, hwi.ErrLoginTimeout)
	require.Less(time.Since(start), time.Second)
	require.Equal(uint64(1), sess.metrics.LoginFailCount.Load())
}

func TestSession_ServeStopsOnContextCancel(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer server.Close()

	sess, _ := newTestSession(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sess.Serve(ctx) }()

	cancel()

	select {
	case err := <-errCh:
		require.Error(err)
		require.NotErrorIs(err, hwi.ErrDisconnected)
	case <-time.After(time.Second):
		require.FailNow("Serve didn't return")
	}
}

func TestSession_DisconnectUnblocksServe(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer server.Close()

	quit := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(server).ReadString('\n')
		quit <- line
	}()

	sess, tr := newTestSession(t, client)

	errCh := make(chan error, 1)
	go func() { errCh <- sess.Serve(context.Background()) }()

	require.NoError(sess.Disconnect())
	require.NoError(sess.Disconnect())
	require.True(sess.IsDisconnected())

	select {
	case err := <-errCh:
		require.ErrorIs(err, hwi.ErrDisconnected)
	case <-time.After(time.Second):
		require.FailNow("Serve didn't return")
	}

	require.Equal("QUIT\r\n", <-quit)
	require.Equal(hwi.DisconnectingState, sess.stateMgr.State())

	msg, ok := tr.responses.TryPop()
	require.True(ok)
	require.True(msg.IsState(hwi.DisconnectingState))
	_, ok = tr.responses.TryPop()
	require.False(ok)
}
