package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bugVanisher/avpush/pusher"
	"github.com/bugVanisher/avpush/transport"
)

func TestURLConfig(t *testing.T) {
	a := upstreamArgs{maxRetries: 0, chunkSize: 60000}
	cfg, err := a.urlConfig("rtmp://127.0.0.1/live/key", 3)
	require.NoError(t, err)
	rc, ok := cfg.(transport.RtmpConfig)
	require.True(t, ok)
	require.Equal(t, 3, rc.Priority)
	require.Equal(t, 60000, rc.ChunkSize)
	require.Equal(t, 0, rc.RetryPolicy.MaxRetries)

	a = upstreamArgs{maxRetries: -1}
	cfg, err = a.urlConfig("srt://127.0.0.1:9000?streamid=key", 0)
	require.NoError(t, err)
	sc, ok := cfg.(transport.SrtConfig)
	require.True(t, ok)
	require.Equal(t, 0, sc.Priority)
	require.Equal(t, transport.DefaultRetryPolicy().MaxRetries, sc.RetryPolicy.MaxRetries)

	_, err = a.urlConfig("http://127.0.0.1/live", 0)
	require.Error(t, err)
}

func TestPushSession(t *testing.T) {
	_, _, _, err := upstreamArgs{sourceFile: "a.flv"}.session()
	require.Error(t, err)
	_, _, _, err = upstreamArgs{urls: []string{"rtmp://h/live/k"}}.session()
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"name": "cam",
		"source": "cam.flv",
		"duration": "5s",
		"transports": [{"url": "rtmp://h/live/k", "priority": 1}]
	}`), 0o644))
	a := upstreamArgs{configFile: path, urls: []string{"srt://h:9000"}, maxRetries: -1}
	s, name, d, err := a.session()
	require.NoError(t, err)
	require.Equal(t, "cam", name)
	require.Equal(t, 5*time.Second, d)
	require.Equal(t, pusher.SessionIdle, s.State().Kind)
}
