package metrics_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/omochice/chatanon/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.ConnectAttempt()
	m.ReconnectScheduled(time.Second)
	m.ConnectionState("open", []string{"open"})
	m.FrameSent("chat_message")
	m.FrameReceived("paired")
	m.FrameRejected("malformed")
	m.SendDropped()
	m.OnlinePoll(true)
}

func TestMetrics_Counters(t *testing.T) {
	req := require.New(t)
	registry := prometheus.NewRegistry()
	m := metrics.New(metrics.WithRegistry(registry))

	m.ConnectAttempt()
	m.ConnectAttempt()
	m.ReconnectScheduled(3 * time.Second)
	m.ConnectionState("reconnecting", []string{"open", "reconnecting"})

	count, err := testutil.GatherAndCount(registry, "chatanon_transport_connect_attempts_total")
	req.NoError(err)
	req.Equal(1, count)

	expected := `
# HELP chatanon_transport_connect_attempts_total Socket dials started, including automatic reconnects.
# TYPE chatanon_transport_connect_attempts_total counter
chatanon_transport_connect_attempts_total 2
# HELP chatanon_transport_connection_state 1 for the current connection state, 0 for the others.
# TYPE chatanon_transport_connection_state gauge
chatanon_transport_connection_state{state="open"} 0
chatanon_transport_connection_state{state="reconnecting"} 1
`
	req.NoError(testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"chatanon_transport_connect_attempts_total",
		"chatanon_transport_connection_state",
	))
}

func TestMetrics_Handler(t *testing.T) {
	req := require.New(t)
	m := metrics.New(metrics.WithNamespace("test"))
	m.FrameRejected("unknown_type")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	req.Equal(200, rec.Code)
	req.Contains(rec.Body.String(), `test_session_frames_rejected_total{reason="unknown_type"} 1`)
}
