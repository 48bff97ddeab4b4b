package hwi

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the factory telnet port of a HomeWorks processor.
const DefaultPort = 23

// ServerAddress identifies the processor to connect to.
type ServerAddress struct {
	Host string
	Port int
}

// String returns the address in host:port form.
func (a ServerAddress) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Validate checks that the host is set and the port is in range [1, 65535].
func (a ServerAddress) Validate() error {
	if strings.TrimSpace(a.Host) == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidAddress)
	}
	if a.Port < 1 || a.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range [1, 65535]", ErrInvalidAddress, a.Port)
	}

	return nil
}

// Credentials are written in response to the login prompt.
type Credentials struct {
	Username string
	Password string
}

// LoginLine returns the login line without terminator: username,password.
func (c Credentials) LoginLine() string {
	return c.Username + "," + c.Password
}

// LogValue keeps the password out of log records.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("password", "******"),
	)
}

// String keeps the password out of formatted output.
func (c Credentials) String() string {
	return c.Username + ",******"
}
