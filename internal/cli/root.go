// Package cli implements the hwictl command line tool.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-homeworks/config"
	"github.com/arloliu/go-homeworks/logger"
)

const passwordEnv = "HWI_PASSWORD"

var (
	configPath string

	// TCP connection flags
	host     string
	port     int
	username string

	// Serial connection flags
	serialPort string
	baudRate   int

	logLevel string

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hwictl",
	Short: "Lutron HomeWorks processor client",
	Long: `hwictl connects to a Lutron HomeWorks processor over its telnet port or an
RS-232 port, logs in, and sends commands or watches monitoring events.

Connection settings are read from --config and can be overridden by flags:
  TCP:    --host 192.168.1.20 [--port 23] --username lutron
  Serial: --serial /dev/ttyUSB0 [--baud 9600]

The password is read from the configuration file, then from the HWI_PASSWORD
environment variable, or prompted interactively if neither is set.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		appConfig = cfg

		return setupLogger(cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")

	rootCmd.PersistentFlags().StringVarP(&host, "host", "H", "", "Processor host name or IP address")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 23, "Processor telnet port")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "Login user name")

	rootCmd.PersistentFlags().StringVar(&serialPort, "serial", "", "Serial port device, replaces the TCP connection")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (serial only, default 9600)")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(monitorCmd, sendCmd, consoleCmd, serveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func setupLogger(cfg *config.Config) error {
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}

	logger.SetLogger(logger.NewSlogWithWriter(os.Stderr, level, false))

	return nil
}
