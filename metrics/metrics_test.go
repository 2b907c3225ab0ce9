package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// gather 返回name指标所有样本的值(counter或gauge)
func gather(t *testing.T, reg *prometheus.Registry, name string) []float64 {
	mfs, err := reg.Gather()
	require.Nil(t, err)
	var vals []float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				vals = append(vals, m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				vals = append(vals, m.GetGauge().GetValue())
			}
		}
	}
	return vals
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SessionActive(1)
	m.SessionState("streaming")
	m.ConnectAttempt("rtmp", nil)
	m.ConnectAttempt("rtmp", errors.New("refused"))
	m.Sent("rtmp", "video", 1000)
	m.Sent("rtmp", "audio", 24)
	m.Dropped("video")
	m.Reconnect(time.Second)
	m.SetTransportState("t1", "rtmp", 3)
	m.Failover()

	require.Equal(t, []float64{1}, gather(t, reg, "avpush_active_sessions"))
	require.Equal(t, []float64{2}, gather(t, reg, "avpush_transport_connect_attempts_total"))
	require.Equal(t, []float64{1}, gather(t, reg, "avpush_transport_connect_failures_total"))
	require.Equal(t, []float64{1024}, gather(t, reg, "avpush_transport_bytes_sent_total"))
	require.Equal(t, []float64{3}, gather(t, reg, "avpush_transport_state"))
	require.Len(t, gather(t, reg, "avpush_frames_sent_total"), 2)

	m.RemoveTransport("t1", "rtmp")
	require.Empty(t, gather(t, reg, "avpush_transport_state"))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.SessionActive(1)
	m.SessionState("idle")
	m.ConnectAttempt("srt", nil)
	m.Sent("srt", "audio", 1)
	m.Dropped("audio")
	m.Reconnect(time.Second)
	m.SetTransportState("x", "srt", 0)
	m.RemoveTransport("x", "srt")
	m.Failover()
}
