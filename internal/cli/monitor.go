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

	"github.com/spf13/cobra"

	"github.com/arloliu/go-homeworks/hwi"
	"github.com/arloliu/go-homeworks/logger"
	"github.com/arloliu/go-homeworks/monitor"
)

var (
	monitorTopics  []string
	monitorAddress string
	monitorRaw     bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print monitoring events",
	Long: `Connect, enable monitoring and print every monitoring event until interrupted.

Events can be narrowed down by topic (DL, KBP, KBR, KBH, KBDT, KLS, GSS, SVS, TCS)
and by device address:

  hwictl monitor --topic DL --address 01:01:00:02:04`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringSliceVarP(&monitorTopics, "topic", "t", nil, "Topics to print, default all")
	monitorCmd.Flags().StringVarP(&monitorAddress, "address", "a", "", "Only print events for this device address")
	monitorCmd.Flags().BoolVar(&monitorRaw, "raw", false, "Print every processor line instead of parsed events")
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	topics, err := parseTopics(monitorTopics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord, err := newCoordinator(ctx, appConfig)
	if err != nil {
		return err
	}

	router := monitor.NewRouter(logger.GetLogger())
	subscribeEvents(router, topics, monitorAddress, cmd.OutOrStdout())

	routeEvents := router.Handler()
	if monitorRaw {
		routeEvents = printData(cmd.OutOrStdout())
	}
	coord.SetResponseHandler(func(msg hwi.ResponseMessage) bool {
		if msg.IsStateUpdate() {
			logger.Info("connection state", "state", msg.State.String(), "error", msg.Err)
		}

		return routeEvents(msg)
	})

	if err := connect(ctx, coord, appConfig); err != nil {
		return err
	}

	return waitInterrupted(ctx, coord.Wait, coord.Disconnect)
}

func parseTopics(names []string) ([]monitor.Topic, error) {
	topics := make([]monitor.Topic, 0, len(names))
	for _, name := range names {
		topic := monitor.Topic(strings.ToUpper(strings.TrimSpace(name)))
		if !topic.IsValid() {
			return nil, fmt.Errorf("unknown topic %q", name)
		}
		topics = append(topics, topic)
	}

	return topics, nil
}

// subscribeEvents prints the events of topics, or of every topic when topics is empty.
func subscribeEvents(router *monitor.Router, topics []monitor.Topic, address string, out io.Writer) {
	if len(topics) == 0 {
		topics = monitor.AllTopics()
	}

	var filter monitor.Filter
	if address != "" {
		filter = monitor.AddressEquals(address)
	}

	for _, topic := range topics {
		router.Subscribe(topic, filter, func(ev monitor.Event) {
			fmt.Fprintln(out, formatEvent(ev))
		})
	}
}

func formatEvent(ev monitor.Event) string {
	if len(ev.Args) == 0 {
		return ev.Topic.String()
	}

	return ev.Topic.String() + " " + strings.Join(ev.Args, " ")
}

// waitInterrupted waits for the connection to terminate. When ctx is canceled first the connection is closed.
func waitInterrupted(ctx context.Context, wait func(context.Context) error, disconnect func() error) error {
	err := wait(ctx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return disconnect()
	}

	return err
}
