// Package config loads the YAML configuration of a HomeWorks client.
//
// Example file:
//
//	server:
//	  host: 192.168.1.20
//	  port: 23
//	credentials:
//	  username: lutron
//	  password_env: HWI_PASSWORD
//	timeouts:
//	  connect: 3s
//	  login: 10s
//	retry:
//	  max_retries: 5
//	  initial_delay: 100ms
//	  max_delay: 10s
//	monitoring:
//	  commands: [DLMON, KBMON, KLMON]
//	log:
//	  level: info
//	metrics:
//	  listen: 127.0.0.1:9464
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-homeworks/hwi"
	"github.com/arloliu/go-homeworks/hwiconn"
	"github.com/arloliu/go-homeworks/logger"
)

// DefaultMetricsNamespace is the Prometheus namespace used when none is configured.
const DefaultMetricsNamespace = "homeworks"

// Config is the root of the configuration file.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Serial      SerialConfig      `yaml:"serial"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Timeouts    TimeoutConfig     `yaml:"timeouts"`
	Retry       RetryConfig       `yaml:"retry"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Log         LogConfig         `yaml:"log"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SerialConfig selects an RS-232 connection when Port is set.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// CredentialsConfig holds the login credentials. PasswordEnv names an environment variable
// holding the password and takes precedence over Password.
type CredentialsConfig struct {
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"password_env"`
}

// TimeoutConfig holds durations such as "3s" or "500ms". Zero keeps the connection default.
type TimeoutConfig struct {
	Connect time.Duration `yaml:"connect"`
	Login   time.Duration `yaml:"login"`
	Write   time.Duration `yaml:"write"`
	Close   time.Duration `yaml:"close"`
}

type RetryConfig struct {
	// MaxRetries nil keeps the connection default.
	MaxRetries   *int          `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

type MonitoringConfig struct {
	// Disabled turns off the monitoring-enable commands.
	Disabled bool `yaml:"disabled"`
	// Commands nil keeps the default monitoring commands.
	Commands []string `yaml:"commands"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	// Listen is the address of the metrics HTTP endpoint, empty disables it.
	Listen    string `yaml:"listen"`
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Port: hwi.DefaultPort},
		Log:     LogConfig{Level: "info"},
		Metrics: MetricsConfig{Namespace: DefaultMetricsNamespace},
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Read reads the configuration file at path without validating it, so that
// missing values can still be supplied by other means.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes a YAML configuration on top of Default. Unknown fields are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	return cfg, nil
}

// Validate checks the parts of the configuration that connection options don't check.
func (c *Config) Validate() error {
	if c.Serial.Port == "" {
		if err := c.Address().Validate(); err != nil {
			return err
		}
	}

	if c.Serial.BaudRate < 0 {
		return fmt.Errorf("invalid serial baud rate %d", c.Serial.BaudRate)
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}

	return nil
}

// IsSerial returns true when the processor is attached by RS-232.
func (c *Config) IsSerial() bool {
	return c.Serial.Port != ""
}

// Address returns the processor address. For a serial connection the port name is used as host.
func (c *Config) Address() hwi.ServerAddress {
	if c.IsSerial() {
		return hwi.ServerAddress{Host: c.Serial.Port, Port: hwi.DefaultPort}
	}

	return hwi.ServerAddress{Host: strings.TrimSpace(c.Server.Host), Port: c.Server.Port}
}

// LoginCredentials returns the login credentials, resolving the password from the environment if configured.
func (c *Config) LoginCredentials() hwi.Credentials {
	creds := hwi.Credentials{Username: c.Credentials.Username, Password: c.Credentials.Password}
	if c.Credentials.PasswordEnv != "" {
		if pw, ok := os.LookupEnv(c.Credentials.PasswordEnv); ok {
			creds.Password = pw
		}
	}

	return creds
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() (logger.Level, error) {
	if c.Log.Level == "" {
		return logger.InfoLevel, nil
	}

	return logger.ParseLevel(c.Log.Level)
}

// ConnOptions converts the configuration into connection options.
// Unset values keep the connection defaults.
func (c *Config) ConnOptions() []hwiconn.ConnOption {
	var opts []hwiconn.ConnOption

	if c.IsSerial() {
		opts = append(opts, hwiconn.WithSerialPort(c.Serial.Port, c.Serial.BaudRate))
	}

	if c.Timeouts.Connect != 0 {
		opts = append(opts, hwiconn.WithConnectTimeout(c.Timeouts.Connect))
	}
	if c.Timeouts.Login != 0 {
		opts = append(opts, hwiconn.WithLoginTimeout(c.Timeouts.Login))
	}
	if c.Timeouts.Write != 0 {
		opts = append(opts, hwiconn.WithWriteTimeout(c.Timeouts.Write))
	}
	if c.Timeouts.Close != 0 {
		opts = append(opts, hwiconn.WithCloseTimeout(c.Timeouts.Close))
	}

	if c.Retry.MaxRetries != nil {
		opts = append(opts, hwiconn.WithMaxRetries(*c.Retry.MaxRetries))
	}
	if c.Retry.InitialDelay != 0 || c.Retry.MaxDelay != 0 {
		maxDelay := max(c.Retry.MaxDelay, c.Retry.InitialDelay)
		opts = append(opts, hwiconn.WithRetryDelay(c.Retry.InitialDelay, maxDelay))
	}

	switch {
	case c.Monitoring.Disabled:
		opts = append(opts, hwiconn.WithMonitoringCommands())
	case c.Monitoring.Commands != nil:
		opts = append(opts, hwiconn.WithMonitoringCommands(c.Monitoring.Commands...))
	}

	return opts
}
