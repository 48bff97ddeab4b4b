package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/arloliu/go-homeworks/config"
	"github.com/arloliu/go-homeworks/hwi"
	"github.com/arloliu/go-homeworks/hwiconn"
	"github.com/arloliu/go-homeworks/logger"
)

// loadConfig reads the configuration file, if any, and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Read(configPath); err != nil {
			return nil, err
		}
	}

	applyFlags(cfg, cmd.Flags().Changed)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyFlags overrides configuration values with the flags for which changed returns true.
func applyFlags(cfg *config.Config, changed func(name string) bool) {
	if changed("host") {
		cfg.Server.Host = host
	}
	if changed("port") {
		cfg.Server.Port = port
	}
	if changed("username") {
		cfg.Credentials.Username = username
	}
	if changed("serial") {
		cfg.Serial.Port = serialPort
	}
	if changed("baud") {
		cfg.Serial.BaudRate = baudRate
	}
	if changed("log-level") {
		cfg.Log.Level = logLevel
	}
}

// getPassword returns the configured password, the HWI_PASSWORD variable or an interactive prompt.
func getPassword(creds hwi.Credentials) (string, error) {
	if creds.Password != "" {
		return creds.Password, nil
	}

	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		// not a terminal
		reader := bufio.NewReader(os.Stdin)
		pw, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)

		return strings.TrimSpace(pw), nil
	}
	fmt.Fprintln(os.Stderr)

	return string(pwBytes), nil
}

// newCoordinator builds a coordinator from the configuration. Extra options are applied last.
func newCoordinator(ctx context.Context, cfg *config.Config, opts ...hwiconn.ConnOption) (*hwiconn.Coordinator, error) {
	connOpts := append(cfg.ConnOptions(), hwiconn.WithLogger(logger.GetLogger()))
	connOpts = append(connOpts, opts...)

	connCfg, err := hwiconn.NewConnectionConfig(connOpts...)
	if err != nil {
		return nil, err
	}

	return hwiconn.NewCoordinator(ctx, connCfg)
}

// connect logs in to the processor. The password is only asked for when a user name is configured.
func connect(ctx context.Context, coord *hwiconn.Coordinator, cfg *config.Config) error {
	creds := cfg.LoginCredentials()
	if creds.Username != "" {
		pw, err := getPassword(creds)
		if err != nil {
			return err
		}
		creds.Password = pw
	}

	addr := cfg.Address()
	logger.Info("connecting", "address", addr.String(), "username", creds.Username)

	if err := coord.Connect(ctx, addr, creds); err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}

	return nil
}
