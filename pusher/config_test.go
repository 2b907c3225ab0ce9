package pusher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/transport"
)

const sampleConfig = `{
  "name": "demo",
  "source": "/data/demo.flv",
  "loop": true,
  "duration": "10m",
  "transports": [
    {"url": "rtmp://a.example.com/live/key1", "priority": 0, "chunkSize": 8192, "retry": {"maxRetries": 5, "baseDelay": 500, "maxDelay": "10s", "multiplier": 1.5}},
    {"url": "srt://b.example.com:9000", "priority": 1, "latency": "200ms", "streamId": "#!::r=live/key1,m=publish"},
    {"url": "rtmp://c.example.com/live/key1", "enabled": false}
  ],
  "video": {"width": 1280, "height": 720, "fps": 25, "maxBps": 2500, "minBps": 800, "codec": "h264"},
  "advanced": {"simultaneousPush": true, "fallbackEnabled": false, "statsInterval": "2s"}
}`

func TestParseConfig(t *testing.T) {
	fc, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)
	require.Equal(t, "demo", fc.Name)
	require.True(t, fc.Loop)
	require.Equal(t, 10*time.Minute, time.Duration(fc.Duration))

	configs, err := fc.TransportConfigs()
	require.NoError(t, err)
	require.Len(t, configs, 3)

	rtmp, ok := configs[0].(transport.RtmpConfig)
	require.True(t, ok)
	require.Equal(t, 8192, rtmp.ChunkSize)
	require.Equal(t, 0, rtmp.Priority)
	require.Equal(t, 5, rtmp.RetryPolicy.MaxRetries)
	require.Equal(t, 500*time.Millisecond, rtmp.RetryPolicy.BaseDelay)
	require.Equal(t, 10*time.Second, rtmp.RetryPolicy.MaxDelay)

	srt, ok := configs[1].(transport.SrtConfig)
	require.True(t, ok)
	require.Equal(t, 200*time.Millisecond, srt.Latency)
	require.Equal(t, "#!::r=live/key1,m=publish", srt.StreamID)
	require.Equal(t, 1, srt.Priority)

	require.False(t, configs[2].Meta().Enabled)

	opts := DefaultOptions()
	for _, o := range fc.Options() {
		o(&opts)
	}
	require.True(t, opts.Advanced.EnableSimultaneousPush)
	require.False(t, opts.Advanced.FallbackEnabled)
	require.Equal(t, 2*time.Second, opts.Advanced.StatsInterval)
	require.Equal(t, 1280, opts.Video.Width)
	require.Equal(t, 25, opts.Video.FPS)
	// 没写audio时保持默认
	require.Equal(t, 44100, opts.Audio.SampleRate)
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig([]byte(`{"name": "x"}`))
	require.Error(t, err)
	se, ok := errs.AsStreamError(err)
	require.True(t, ok)
	require.Equal(t, errs.CategoryConfiguration, se.Category())

	_, err = ParseConfig([]byte(`{"transports": [`))
	require.Error(t, err)

	_, err = ParseConfig([]byte(`{"duration": "abc", "transports": [{"url": "rtmp://h/a/k"}]}`))
	require.Error(t, err)

	fc, err := ParseConfig([]byte(`{"transports": [{"url": "ftp://h/a/k"}]}`))
	require.NoError(t, err)
	_, err = fc.TransportConfigs()
	require.Error(t, err)
	t.Logf("err: %v", err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "push.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))
	fc, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, fc.Transports, 3)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1.5s"`)))
	require.Equal(t, 1500*time.Millisecond, time.Duration(d))
	require.NoError(t, d.UnmarshalJSON([]byte(`250`)))
	require.Equal(t, 250*time.Millisecond, time.Duration(d))
	require.NoError(t, d.UnmarshalJSON([]byte(`null`)))
	require.Equal(t, 250*time.Millisecond, time.Duration(d))
	require.Error(t, d.UnmarshalJSON([]byte(`"later"`)))

	b, err := Duration(2 * time.Second).MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `"2s"`, string(b))
}
