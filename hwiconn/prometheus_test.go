package hwiconn

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-homeworks/hwi"
)

func TestCoordinator_RegisterMetrics(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConnectionConfig()
	require.NoError(err)
	coord, err := NewCoordinator(context.Background(), cfg)
	require.NoError(err)

	reg := prometheus.NewRegistry()
	require.NoError(coord.RegisterMetrics(reg, "hwictl"))
	require.Error(coord.RegisterMetrics(reg, "hwictl"))

	coord.Metrics().incCommandSendCount()
	coord.Metrics().incCommandSendCount()
	coord.Metrics().incConnRetryGauge()
	require.NoError(coord.EnqueueCommand("DLMON"))

	families, err := reg.Gather()
	require.NoError(err)

	values := map[string]float64{}
	for _, mf := range families {
		metric := mf.GetMetric()[0]
		switch {
		case metric.GetCounter() != nil:
			values[mf.GetName()] = metric.GetCounter().GetValue()
		case metric.GetGauge() != nil:
			values[mf.GetName()] = metric.GetGauge().GetValue()
		}
	}

	require.Len(values, 10)
	require.InDelta(2, values["hwictl_hwi_commands_sent_total"], 0)
	require.InDelta(1, values["hwictl_hwi_reconnect_retries"], 0)
	require.InDelta(1, values["hwictl_hwi_pending_requests"], 0)
	require.InDelta(float64(hwi.NotConnectedState), values["hwictl_hwi_connection_state"], 0)
}
