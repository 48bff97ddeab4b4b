package hwi

import "errors"

var (
	// ErrConnConfigNil indicates that a nil ConnectionConfig was provided.
	ErrConnConfigNil = errors.New("connection config is nil")

	// ErrInvalidAddress indicates that the server address is not usable.
	ErrInvalidAddress = errors.New("invalid server address")

	// ErrInvalidRequest indicates that a request can't be written to the wire.
	ErrInvalidRequest = errors.New("invalid request")
)

var (
	// ErrInvalidEncoding indicates that a processor line contains bytes outside 7-bit ASCII.
	ErrInvalidEncoding = errors.New("line is not 7-bit ASCII")

	// ErrLoginIncorrect indicates that the processor rejected the credentials.
	ErrLoginIncorrect = errors.New("login incorrect")

	// ErrLoginTimeout indicates that the login handshake didn't finish in time.
	ErrLoginTimeout = errors.New("login timeout")
)

var (
	// ErrNotConnected indicates that the connection has not been started or has terminated.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected indicates that the connection is already running.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrServerClosed indicates that the processor announced it is closing the link.
	ErrServerClosed = errors.New("connection closed by processor")

	// ErrDisconnected indicates that the session was closed locally.
	ErrDisconnected = errors.New("disconnected")

	// ErrRetriesExhausted indicates that reconnecting failed too many times in a row.
	ErrRetriesExhausted = errors.New("reconnect retries exhausted")
)
