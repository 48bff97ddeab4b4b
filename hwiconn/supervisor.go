package hwiconn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/arloliu/go-homeworks/hwi"
)

// supervise connects, logs in and serves sessions until the connection is terminated.
//
// It returns nil after an explicit disconnect. Transport failures are retried up to the
// configured number of consecutive attempts with exponential backoff; the counter is reset
// after every successful login. A login that was rejected and never re-prompted ends in a
// login timeout and is retried like a transport failure.
func (c *Coordinator) supervise(ctx context.Context, addr hwi.ServerAddress, creds hwi.Credentials) error {
	maxRetries := c.cfg.MaxRetries()
	initialDelay, maxDelay := c.cfg.RetryDelay()
	delay := initialDelay
	retries := 0

	for {
		loggedIn, err := c.runSession(ctx, addr, creds)

		switch {
		case c.shutdown.Load(), errors.Is(err, hwi.ErrDisconnected):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		}

		c.stateMgr.ToState(hwi.NotConnectedState)
		c.metrics.incStateUpdateCount()
		c.transport.PushResponse(hwi.NewStateUpdate(hwi.NotConnectedState))

		if loggedIn {
			retries = 0
			delay = initialDelay
		}

		retries++
		if retries > maxRetries {
			return fmt.Errorf("%w: %d attempts failed, last error: %w", hwi.ErrRetriesExhausted, retries, err)
		}
		c.metrics.incConnRetryGauge()

		c.logger.Warn("connection lost, schedule reconnect",
			"method", "supervise",
			"address", addr.String(),
			"retry", retries,
			"max_retries", maxRetries,
			"delay", delay,
			"error", err,
		)

		if !c.backoff(ctx, delay) {
			if c.shutdown.Load() {
				return nil
			}

			return ctx.Err()
		}

		delay = min(delay*retryDelayFactor, maxDelay)
	}
}

// backoff waits for delay and returns false when ctx was done first.
func (c *Coordinator) backoff(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// runSession dials, logs in and serves one session. loggedIn reports whether the login succeeded.
func (c *Coordinator) runSession(ctx context.Context, addr hwi.ServerAddress, creds hwi.Credentials) (loggedIn bool, err error) {
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return false, err
	}

	sess := newSession(conn, c.transport, c.stateMgr, &c.metrics, c.cfg)
	if !c.attachSession(sess) {
		sess.closeConn()
		return false, hwi.ErrDisconnected
	}
	defer c.detachSession(sess)

	sess.setState(hwi.ConnectedNotLoggedInState)
	c.logger.Debug("connected to processor", "method", "runSession", "address", addr.String(), "session_id", sess.ID().String())

	if err := sess.Login(ctx, creds); err != nil {
		sess.closeConn()
		return false, err
	}

	c.metrics.resetConnRetryGauge()
	c.seedMonitoring()
	c.markLoggedIn()

	return true, sess.Serve(ctx)
}

func (c *Coordinator) dial(ctx context.Context, addr hwi.ServerAddress) (io.ReadWriteCloser, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout())
	defer cancel()

	conn, err := c.cfg.Dialer().Dial(dialCtx, addr)
	if err != nil {
		c.logger.Debug("failed to dial processor", "method", "dial", "address", addr.String(), "error", err)
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	return conn, nil
}

// seedMonitoring enqueues the monitoring-enable commands ahead of every other request.
//
// Seeds left unsent by a previous session are removed first so they are not written twice.
func (c *Coordinator) seedMonitoring() {
	cmds := c.cfg.MonitoringCommands()
	if len(cmds) == 0 {
		return
	}

	removed := c.transport.RemoveRequests(func(req hwi.RequestMessage) bool {
		return req.Kind == hwi.SendCommandRequest &&
			req.Priority == hwi.MonitoringPriority &&
			slices.Contains(cmds, req.Payload)
	})

	for _, cmd := range cmds {
		c.transport.EnqueueRequest(hwi.NewCommandRequest(cmd).WithPriority(hwi.MonitoringPriority))
	}

	c.logger.Debug("monitoring commands enqueued", "method", "seedMonitoring", "commands", cmds, "stale_removed", removed)
}
