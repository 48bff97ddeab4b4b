package hwiconn

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterMetrics registers the connection metrics with reg.
//
// Counters are exposed as CounterFunc and read the atomic ConnectionMetrics on every scrape.
// The pending request count, the reconnect gauge and the numeric connection state are
// exposed as GaugeFunc.
func (c *Coordinator) RegisterMetrics(reg prometheus.Registerer, namespace string) error {
	m := c.Metrics()

	counter := func(name, help string, val func() uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hwi",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(val()) })
	}
	gauge := func(name, help string, val func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hwi",
			Name:      name,
			Help:      help,
		}, val)
	}

	collectors := []prometheus.Collector{
		counter("commands_sent_total", "Number of request lines written to the processor.", m.CommandSendCount.Load),
		counter("write_errors_total", "Number of failed writes.", m.WriteErrCount.Load),
		counter("responses_received_total", "Number of server response data lines received.", m.ResponseRecvCount.Load),
		counter("state_updates_total", "Number of connection state updates.", m.StateUpdateCount.Load),
		counter("decode_errors_total", "Number of lines that were not 7-bit ASCII.", m.DecodeErrCount.Load),
		counter("logins_total", "Number of successful logins.", m.LoginCount.Load),
		counter("login_failures_total", "Number of rejected or timed out logins.", m.LoginFailCount.Load),
		gauge("reconnect_retries", "Number of consecutive reconnect attempts.", func() float64 {
			return float64(m.ConnRetryGauge.Load())
		}),
		gauge("pending_requests", "Number of requests waiting to be written.", func() float64 {
			return float64(c.transport.PendingRequests())
		}),
		gauge("connection_state", "Numeric connection state, 0 is not connected and 5 is ready for command.", func() float64 {
			return float64(c.State())
		}),
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return fmt.Errorf("register hwi metric: %w", err)
		}
	}

	return nil
}
