package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/metrics"
	"github.com/bugVanisher/avpush/pusher"
)

type fakeStreams struct {
	infos   map[string]pusher.StreamInfo
	stopped []string
}

func (f *fakeStreams) List() (out []pusher.StreamInfo) {
	for _, info := range f.infos {
		out = append(out, info)
	}
	return out
}

func (f *fakeStreams) Lookup(name string) (pusher.StreamInfo, bool) {
	info, ok := f.infos[name]
	return info, ok
}

func (f *fakeStreams) Stop(name string) error {
	if _, ok := f.infos[name]; !ok {
		return errs.ErrStreamNotExist
	}
	f.stopped = append(f.stopped, name)
	return nil
}

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, Response) {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var resp Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, jsoniter.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestServerStreams(t *testing.T) {
	streams := &fakeStreams{infos: map[string]pusher.StreamInfo{
		"cam1": {Name: "cam1", Duration: time.Minute, State: "streaming", Stats: &pusher.StreamStats{FramesSent: 42}},
	}}
	h := NewServer(":0", WithStreams(streams), WithGatherer(prometheus.NewRegistry())).Handler()

	w, resp := do(t, h, http.MethodGet, "/api/ping")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "pong", resp.Data)

	w, resp = do(t, h, http.MethodGet, "/api/v1/streams")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp.Data, 1)

	w, _ = do(t, h, http.MethodGet, "/api/v1/streams/cam1")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"frames_sent":42`)
	t.Logf("body: %s", w.Body.String())

	w, resp = do(t, h, http.MethodGet, "/api/v1/streams/nope")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.EqualValues(t, errs.CodeStreamNotExist, resp.Code)

	w, _ = do(t, h, http.MethodPost, "/api/v1/streams/cam1/stop")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"cam1"}, streams.stopped)

	w, resp = do(t, h, http.MethodPost, "/api/v1/streams/nope/stop")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "stream not exist", resp.Msg)
}

func TestServerEmptyList(t *testing.T) {
	h := NewServer(":0", WithStreams(&fakeStreams{}), WithGatherer(prometheus.NewRegistry())).Handler()
	w, _ := do(t, h, http.MethodGet, "/api/v1/streams")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"data":[]`)
}

func TestServerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Failover()
	m.Dropped("video")
	h := NewServer(":0", WithStreams(&fakeStreams{}), WithGatherer(reg)).Handler()

	w, _ := do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "avpush_failovers_total 1")
	require.Contains(t, w.Body.String(), `avpush_frames_dropped_total{media="video"} 1`)
}

func TestServerRun(t *testing.T) {
	s := NewServer("127.0.0.1:0", WithStreams(&fakeStreams{}), WithGatherer(prometheus.NewRegistry()))
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
