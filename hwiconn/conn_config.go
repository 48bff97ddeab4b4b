package hwiconn

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-homeworks/hwi"
	"github.com/arloliu/go-homeworks/logger"
)

const (
	defaultInitialRetryDelay = 100 * time.Millisecond
	defaultMaxRetryDelay     = 10 * time.Second
	retryDelayFactor         = 2
)

// ConnectionConfig represents the configuration parameters of a HomeWorks connection.
type ConnectionConfig struct {
	mu sync.RWMutex

	// dialer opens the byte stream to the processor.
	// Defaults to a TCPDialer.
	dialer Dialer

	// connectTimeout bounds a single dial attempt. It should be between 0 and 30 seconds.
	// Defaults to 3 seconds.
	connectTimeout time.Duration

	// loginTimeout bounds the login handshake, from the dial until the processor accepted or
	// rejected the credentials. It should be between 0 and 120 seconds.
	// Defaults to 10 seconds.
	loginTimeout time.Duration

	// writeTimeout bounds a single line write when the connection supports write deadlines.
	// It should be between 0 and 60 seconds.
	// Defaults to 5 seconds.
	writeTimeout time.Duration

	// closeTimeout bounds how long Disconnect waits for the connection goroutines to finish.
	// It should be between 0 and 30 seconds.
	// Defaults to 3 seconds.
	closeTimeout time.Duration

	// maxRetries is the number of consecutive reconnect attempts made after a transport failure
	// before the connection gives up.
	// Defaults to 5.
	maxRetries int

	// initialRetryDelay is the delay before the first reconnect attempt. The delay doubles after
	// every failed attempt, up to maxRetryDelay.
	// Defaults to 100 milliseconds and 10 seconds.
	initialRetryDelay time.Duration
	maxRetryDelay     time.Duration

	// monitoringCommands are enqueued at hwi.MonitoringPriority after every successful login.
	// Defaults to hwi.MonitoringCommands.
	monitoringCommands []string

	// logger provides a logger instance for logging connection events and errors.
	logger logger.Logger
}

// NewConnectionConfig creates a new connection configuration with optional functional options.
//
// It initializes a ConnectionConfig with default values and then applies the provided options.
// See the documentation of the WithXXX functions for available configuration options.
//
// Returns a pointer to the initialized ConnectionConfig and an error if any option is invalid.
func NewConnectionConfig(opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		dialer:             &TCPDialer{},
		connectTimeout:     3 * time.Second,
		loginTimeout:       10 * time.Second,
		writeTimeout:       5 * time.Second,
		closeTimeout:       3 * time.Second,
		maxRetries:         5,
		initialRetryDelay:  defaultInitialRetryDelay,
		maxRetryDelay:      defaultMaxRetryDelay,
		monitoringCommands: slices.Clone(hwi.MonitoringCommands),
		logger:             logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func (cfg *ConnectionConfig) Dialer() Dialer {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.dialer
}

func (cfg *ConnectionConfig) ConnectTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.connectTimeout
}

func (cfg *ConnectionConfig) LoginTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.loginTimeout
}

func (cfg *ConnectionConfig) WriteTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.writeTimeout
}

func (cfg *ConnectionConfig) CloseTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.closeTimeout
}

func (cfg *ConnectionConfig) MaxRetries() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.maxRetries
}

// RetryDelay returns the initial and maximum reconnect delay.
func (cfg *ConnectionConfig) RetryDelay() (initial time.Duration, max time.Duration) {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.initialRetryDelay, cfg.maxRetryDelay
}

// MonitoringCommands returns a copy of the monitoring-enable commands.
func (cfg *ConnectionConfig) MonitoringCommands() []string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return slices.Clone(cfg.monitoringCommands)
}

func (cfg *ConnectionConfig) Logger() logger.Logger {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.logger
}

// ConnOption represents a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc struct {
	name      string
	applyFunc func(*ConnectionConfig) error
}

func (c *connOptFunc) apply(cfg *ConnectionConfig) error {
	if cfg == nil {
		return hwi.ErrConnConfigNil
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	if err := c.applyFunc(cfg); err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}

	return nil
}

func newConnOptFunc(name string, f func(*ConnectionConfig) error) *connOptFunc {
	return &connOptFunc{name: name, applyFunc: f}
}

func durationInRange(name string, val, maxVal time.Duration) error {
	if val <= 0 || val > maxVal {
		return fmt.Errorf("%s out of range (0, %s]", name, maxVal)
	}

	return nil
}

// WithDialer sets the Dialer used to open the connection to the processor.
func WithDialer(dialer Dialer) ConnOption {
	return newConnOptFunc("WithDialer", func(cfg *ConnectionConfig) error {
		if dialer == nil {
			return errors.New("dialer is nil")
		}
		cfg.dialer = dialer

		return nil
	})
}

// WithSerialPort connects over an RS-232 port instead of TCP.
// A baudRate of 0 selects DefaultBaudRate.
func WithSerialPort(portName string, baudRate int) ConnOption {
	return newConnOptFunc("WithSerialPort", func(cfg *ConnectionConfig) error {
		if strings.TrimSpace(portName) == "" {
			return errors.New("serial port name is empty")
		}
		if baudRate < 0 {
			return fmt.Errorf("invalid baud rate %d", baudRate)
		}
		cfg.dialer = &SerialDialer{PortName: portName, BaudRate: baudRate}

		return nil
	})
}

// WithConnectTimeout sets the timeout of a single dial attempt. It should be in range (0, 30s].
func WithConnectTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithConnectTimeout", func(cfg *ConnectionConfig) error {
		if err := durationInRange("connect timeout", val, 30*time.Second); err != nil {
			return err
		}
		cfg.connectTimeout = val

		return nil
	})
}

// WithLoginTimeout sets the timeout of the login handshake. It should be in range (0, 120s].
func WithLoginTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithLoginTimeout", func(cfg *ConnectionConfig) error {
		if err := durationInRange("login timeout", val, 120*time.Second); err != nil {
			return err
		}
		cfg.loginTimeout = val

		return nil
	})
}

// WithWriteTimeout sets the timeout of a single line write. It should be in range (0, 60s].
func WithWriteTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithWriteTimeout", func(cfg *ConnectionConfig) error {
		if err := durationInRange("write timeout", val, 60*time.Second); err != nil {
			return err
		}
		cfg.writeTimeout = val

		return nil
	})
}

// WithCloseTimeout sets how long Disconnect waits for the connection to shut down. It should be in range (0, 30s].
func WithCloseTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithCloseTimeout", func(cfg *ConnectionConfig) error {
		if err := durationInRange("close timeout", val, 30*time.Second); err != nil {
			return err
		}
		cfg.closeTimeout = val

		return nil
	})
}

// WithMaxRetries sets the number of consecutive reconnect attempts. It should be in range [0, 1000].
// Zero disables reconnecting.
func WithMaxRetries(val int) ConnOption {
	return newConnOptFunc("WithMaxRetries", func(cfg *ConnectionConfig) error {
		if val < 0 || val > 1000 {
			return fmt.Errorf("max retries %d out of range [0, 1000]", val)
		}
		cfg.maxRetries = val

		return nil
	})
}

// WithRetryDelay sets the initial and the maximum reconnect delay.
//
// The delay doubles after every failed attempt. WithRetryDelay(0, 0) reconnects immediately.
func WithRetryDelay(initial time.Duration, maxDelay time.Duration) ConnOption {
	return newConnOptFunc("WithRetryDelay", func(cfg *ConnectionConfig) error {
		if initial < 0 || maxDelay < initial {
			return fmt.Errorf("invalid retry delay: initial %s, max %s", initial, maxDelay)
		}
		cfg.initialRetryDelay = initial
		cfg.maxRetryDelay = maxDelay

		return nil
	})
}

// WithMonitoringCommands replaces the commands enqueued after every successful login.
// Calling it without commands disables monitoring.
func WithMonitoringCommands(cmds ...string) ConnOption {
	return newConnOptFunc("WithMonitoringCommands", func(cfg *ConnectionConfig) error {
		for _, cmd := range cmds {
			req := hwi.NewCommandRequest(cmd)
			if err := req.Validate(); err != nil {
				return err
			}
		}
		cfg.monitoringCommands = slices.Clone(cmds)

		return nil
	})
}

// WithLogger sets the logger. A nil logger selects the package default.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", func(cfg *ConnectionConfig) error {
		if l == nil {
			l = logger.GetLogger()
		}
		cfg.logger = l

		return nil
	})
}
