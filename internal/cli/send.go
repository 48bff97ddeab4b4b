package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-homeworks/hwi"
	"github.com/arloliu/go-homeworks/hwiconn"
)

var (
	sendWait    time.Duration
	sendRaw     bool
	sendMonitor bool
)

var sendCmd = &cobra.Command{
	Use:   "send COMMAND [ARG...]",
	Short: "Send one command and print the processor output",
	Long: `Connect, send one command and print every line the processor sends back
within --wait, then quit.

  hwictl send FADEDIM 50 2 0 '[01:01:01:01:01]'
  hwictl send --raw 'RDL,[01:01:01:01:01]'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().DurationVarP(&sendWait, "wait", "w", 2*time.Second, "How long to print processor output")
	sendCmd.Flags().BoolVar(&sendRaw, "raw", false, "Send the arguments joined by spaces as one line")
	sendCmd.Flags().BoolVar(&sendMonitor, "monitor", false, "Enable monitoring before sending")
}

func runSend(cmd *cobra.Command, args []string) error {
	req := buildRequest(args, sendRaw)
	if err := req.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []hwiconn.ConnOption
	if !sendMonitor {
		opts = append(opts, hwiconn.WithMonitoringCommands())
	}

	coord, err := newCoordinator(ctx, appConfig, opts...)
	if err != nil {
		return err
	}
	coord.SetResponseHandler(printData(cmd.OutOrStdout()))

	if err := connect(ctx, coord, appConfig); err != nil {
		return err
	}

	if err := coord.Enqueue(req); err != nil {
		_ = coord.Disconnect()
		return err
	}

	return waitAndQuit(ctx, coord, sendWait)
}

func buildRequest(args []string, raw bool) hwi.RequestMessage {
	if raw {
		return hwi.NewDataRequest(strings.Join(args, " "), hwi.DefaultPriority)
	}

	return hwi.NewCommandRequest(args[0], args[1:]...)
}

// printData returns a response handler writing every server response line to out.
func printData(out io.Writer) hwiconn.ResponseHandler {
	return func(msg hwi.ResponseMessage) bool {
		if msg.IsData() {
			fmt.Fprintln(out, msg.Data)
		}

		return true
	}
}

// waitAndQuit keeps the connection open for wait, then queues a disconnect behind the pending requests.
func waitAndQuit(ctx context.Context, coord *hwiconn.Coordinator, wait time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	err := coord.Wait(waitCtx)
	if !errors.Is(err, context.DeadlineExceeded) {
		if ctx.Err() != nil {
			return coord.Disconnect()
		}

		return err
	}

	if err := coord.Enqueue(hwi.NewDisconnectRequest()); err != nil {
		return err
	}

	quitCtx, quitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer quitCancel()

	if err := coord.Wait(quitCtx); err != nil {
		_ = coord.Disconnect()
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.New("processor did not become ready to quit")
		}

		return err
	}

	return nil
}
