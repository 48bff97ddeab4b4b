package hwiconn

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"go.bug.st/serial"

	"github.com/arloliu/go-homeworks/hwi"
)

// DefaultBaudRate is the factory RS-232 speed of a HomeWorks processor.
const DefaultBaudRate = 9600

// Dialer opens the byte stream to a HomeWorks processor.
//
// Closing the returned stream must unblock a pending Read.
type Dialer interface {
	Dial(ctx context.Context, addr hwi.ServerAddress) (io.ReadWriteCloser, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, addr hwi.ServerAddress) (io.ReadWriteCloser, error)

func (f DialerFunc) Dial(ctx context.Context, addr hwi.ServerAddress) (io.ReadWriteCloser, error) {
	return f(ctx, addr)
}

// TCPDialer connects to the telnet port of the processor.
type TCPDialer struct {
	// KeepAlive is the TCP keep-alive period. Zero selects 30 seconds.
	KeepAlive time.Duration
}

func (d *TCPDialer) Dial(ctx context.Context, addr hwi.ServerAddress) (io.ReadWriteCloser, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	keepAlive := d.KeepAlive
	if keepAlive == 0 {
		keepAlive = 30 * time.Second
	}

	dialer := &net.Dialer{KeepAlive: keepAlive}

	return dialer.DialContext(ctx, "tcp", addr.String())
}

// SerialDialer opens a processor attached to an RS-232 port with 8 data bits, no parity and one stop bit.
//
// The server address passed to Dial is ignored.
type SerialDialer struct {
	PortName string
	// BaudRate zero selects DefaultBaudRate.
	BaudRate int
}

func (d *SerialDialer) Dial(ctx context.Context, _ hwi.ServerAddress) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	baudRate := d.BaudRate
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	port, err := serial.Open(d.PortName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}

	return port, nil
}
