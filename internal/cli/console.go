package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"

	"github.com/arloliu/go-homeworks/hwi"
)

const (
	historyFileName = ".hwictl_history"
	historySize     = 500
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive processor console",
	Long: `Connect and open an interactive console. Every line entered is sent to the
processor as is and its output is printed above the prompt.

Type "quit" or press Ctrl-D to disconnect.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func runConsole(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:       "hwi> ",
		HistoryFile:  historyPath(),
		HistoryLimit: historySize,
	})
	if err != nil {
		return fmt.Errorf("failed to init readline: %w", err)
	}
	defer rl.Close()

	coord, err := newCoordinator(ctx, appConfig)
	if err != nil {
		return err
	}

	// readline redraws the prompt below lines written through it
	coord.SetResponseHandler(printData(rl))
	coord.AddConnStateChangeHandler(func(_, newState hwi.ConnState) {
		if newState.IsNotConnected() {
			fmt.Fprintln(rl, "** connection lost, reconnecting")
		}
	})

	if err := connect(ctx, coord, appConfig); err != nil {
		return err
	}
	defer func() { _ = coord.Disconnect() }()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case isQuit(line):
			return nil
		}

		if err := coord.Enqueue(hwi.NewDataRequest(line, hwi.DefaultPriority)); err != nil {
			fmt.Fprintf(rl, "** %v\n", err)
		}
	}
}

func isQuit(line string) bool {
	switch strings.ToLower(line) {
	case "quit", "exit":
		return true
	default:
		return false
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, historyFileName)
}
