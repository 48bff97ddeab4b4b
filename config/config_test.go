package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-homeworks/hwi"
	"github.com/arloliu/go-homeworks/hwiconn"
	"github.com/arloliu/go-homeworks/logger"
)

const sampleConfig = `
server:
  host: 192.168.1.20
credentials:
  username: lutron
  password: fallback
  password_env: HWI_TEST_PASSWORD
timeouts:
  connect: 2s
  login: 15s
retry:
  max_retries: 8
  initial_delay: 200ms
  max_delay: 5s
monitoring:
  commands: [DLMON, KBMON]
log:
  level: debug
metrics:
  listen: 127.0.0.1:9464
`

func TestLoad(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "hwi.yaml")
	require.NoError(os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(err)

	require.Equal(hwi.ServerAddress{Host: "192.168.1.20", Port: 23}, cfg.Address())
	require.False(cfg.IsSerial())
	require.Equal(2*time.Second, cfg.Timeouts.Connect)
	require.Equal(200*time.Millisecond, cfg.Retry.InitialDelay)
	require.Equal("127.0.0.1:9464", cfg.Metrics.Listen)
	require.Equal(DefaultMetricsNamespace, cfg.Metrics.Namespace)

	level, err := cfg.LogLevel()
	require.NoError(err)
	require.Equal(logger.DebugLevel, level)

	connCfg, err := hwiconn.NewConnectionConfig(cfg.ConnOptions()...)
	require.NoError(err)
	require.Equal(2*time.Second, connCfg.ConnectTimeout())
	require.Equal(15*time.Second, connCfg.LoginTimeout())
	require.Equal(8, connCfg.MaxRetries())
	initial, maxDelay := connCfg.RetryDelay()
	require.Equal(200*time.Millisecond, initial)
	require.Equal(5*time.Second, maxDelay)
	require.Equal([]string{"DLMON", "KBMON"}, connCfg.MonitoringCommands())
}

func TestLoginCredentials(t *testing.T) {
	require := require.New(t)

	cfg, err := Parse(strings.NewReader(sampleConfig))
	require.NoError(err)

	t.Setenv("HWI_TEST_PASSWORD", "from-env")
	require.Equal(hwi.Credentials{Username: "lutron", Password: "from-env"}, cfg.LoginCredentials())

	require.NoError(os.Unsetenv("HWI_TEST_PASSWORD"))
	require.Equal("fallback", cfg.LoginCredentials().Password)
}

func TestParse_Serial(t *testing.T) {
	require := require.New(t)

	cfg, err := Parse(strings.NewReader(`
serial:
  port: /dev/ttyUSB0
monitoring:
  disabled: true
`))
	require.NoError(err)
	require.True(cfg.IsSerial())
	require.Equal("/dev/ttyUSB0", cfg.Address().Host)

	connCfg, err := hwiconn.NewConnectionConfig(cfg.ConnOptions()...)
	require.NoError(err)
	require.Equal(&hwiconn.SerialDialer{PortName: "/dev/ttyUSB0"}, connCfg.Dialer())
	require.Empty(connCfg.MonitoringCommands())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "server:\n  host: hwi\n  hostname: x\n"},
		{"bad duration", "server:\n  host: hwi\ntimeouts:\n  connect: soon\n"},
		{"not a mapping", "- server\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing host", "server:\n  port: 23\n"},
		{"bad port", "server:\n  host: hwi\n  port: 70000\n"},
		{"bad baud rate", "serial:\n  port: COM1\n  baud_rate: -1\n"},
		{"bad log level", "server:\n  host: hwi\nlog:\n  level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse(strings.NewReader(tt.yaml))
			require.NoError(t, err)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(err)

	// an empty file has no host
	path := filepath.Join(dir, "empty.yaml")
	require.NoError(os.WriteFile(path, nil, 0o600))
	_, err = Load(path)
	require.ErrorIs(err, hwi.ErrInvalidAddress)

	cfg, err := Read(path)
	require.NoError(err)
	require.Equal(Default(), cfg)
}
