package hwiconn

import (
	"sync/atomic"
)

// ConnectionMetrics contains atomic metrics for a connection.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc, see Coordinator.RegisterMetrics.
type ConnectionMetrics struct {
	// CommandSendCount indicates the number of request lines written, login lines excluded.
	CommandSendCount atomic.Uint64
	// WriteErrCount indicates the number of failed writes.
	WriteErrCount atomic.Uint64

	// ResponseRecvCount indicates the number of server response data lines received.
	ResponseRecvCount atomic.Uint64
	// StateUpdateCount indicates the number of state updates pushed to the response queue.
	StateUpdateCount atomic.Uint64
	// DecodeErrCount indicates the number of lines that weren't 7-bit ASCII.
	DecodeErrCount atomic.Uint64

	// LoginCount indicates the number of successful logins.
	LoginCount atomic.Uint64
	// LoginFailCount indicates the number of rejected or timed out logins.
	LoginFailCount atomic.Uint64

	// ConnRetryGauge indicates the number of consecutive connection retries.
	ConnRetryGauge atomic.Uint32
}

func (m *ConnectionMetrics) incCommandSendCount() {
	m.CommandSendCount.Add(1)
}

func (m *ConnectionMetrics) incWriteErrCount() {
	m.WriteErrCount.Add(1)
}

func (m *ConnectionMetrics) incResponseRecvCount() {
	m.ResponseRecvCount.Add(1)
}

func (m *ConnectionMetrics) incStateUpdateCount() {
	m.StateUpdateCount.Add(1)
}

func (m *ConnectionMetrics) incDecodeErrCount() {
	m.DecodeErrCount.Add(1)
}

func (m *ConnectionMetrics) incLoginCount() {
	m.LoginCount.Add(1)
}

func (m *ConnectionMetrics) incLoginFailCount() {
	m.LoginFailCount.Add(1)
}

func (m *ConnectionMetrics) incConnRetryGauge() {
	m.ConnRetryGauge.Add(1)
}

func (m *ConnectionMetrics) resetConnRetryGauge() {
	m.ConnRetryGauge.Store(0)
}
