package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/go-homeworks/logger"
	"github.com/arloliu/go-homeworks/monitor"
)

const defaultListenAddr = "127.0.0.1:9464"

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Keep a connection open and expose it over HTTP",
	Long: `Keep a connection to the processor open and serve an HTTP API:

  GET  /metrics   Prometheus metrics
  GET  /state     connection state and queue lengths
  POST /commands  {"command": "FADEDIM", "args": ["50", "2", "0", "[01:01:01:01:01]"]}
                  or {"raw": "RDL,[01:01:01:01:01]"}

Monitoring events are written to the log.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "HTTP listen address (default metrics.listen or "+defaultListenAddr+")")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord, err := newCoordinator(ctx, appConfig)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := coord.RegisterMetrics(reg, appConfig.Metrics.Namespace); err != nil {
		return err
	}

	router := monitor.NewRouter(logger.GetLogger())
	for _, topic := range monitor.AllTopics() {
		router.Subscribe(topic, nil, func(ev monitor.Event) {
			logger.Info("monitoring event", "topic", ev.Topic.String(), "args", ev.Args)
		})
	}
	coord.SetResponseHandler(router.Handler())

	if err := connect(ctx, coord, appConfig); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              listenAddr(),
		Handler:           newHandler(coord, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		return waitInterrupted(gctx, coord.Wait, coord.Disconnect)
	})

	return g.Wait()
}

func listenAddr() string {
	switch {
	case serveListen != "":
		return serveListen
	case appConfig.Metrics.Listen != "":
		return appConfig.Metrics.Listen
	default:
		return defaultListenAddr
	}
}

