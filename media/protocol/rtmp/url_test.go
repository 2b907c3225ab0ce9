package rtmp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	u, err := ParseURL("rtmp://live.example.com/live/stream-key?token=abc")
	require.Nil(t, err)
	require.Equal(t, "rtmp", u.Scheme)
	require.Equal(t, "live.example.com", u.Host)
	require.Equal(t, 0, u.Port)
	require.Equal(t, "live", u.App)
	require.Equal(t, "stream-key", u.Stream)
	require.Equal(t, "live.example.com:1935", u.Address())
	require.Equal(t, "rtmp://live.example.com/live", u.TcURL())
	require.Equal(t, "stream-key?token=abc", u.PublishName())
	require.False(t, u.TLS())

	u, err = ParseURL("RTMPS://[::1]:8443/app/a/b")
	require.Nil(t, err)
	require.True(t, u.TLS())
	require.Equal(t, "[::1]:8443", u.Address())
	require.Equal(t, "a/b", u.Stream)

	u, err = ParseURL("rtmps://host/app/key")
	require.Nil(t, err)
	require.Equal(t, "host:443", u.Address())

	for _, bad := range []string{"", "   ", "http://host/app/key", "rtmp:///app/key", "rtmp://host:99999/app", "::"} {
		_, err = ParseURL(bad)
		require.NotNil(t, err, bad)
	}
}

func TestSplitPath(t *testing.T) {
	cases := []struct {
		path, app, stream string
	}{
		{"/live/key", "live", "key"},
		{"/live/sub/key", "live", "sub/key"},
		{"//live//key", "live", "key"},
		{"/live", "live", ""},
		{"", "", ""},
	}
	for _, c := range cases {
		app, stream := SplitPath(c.path)
		require.Equal(t, c.app, app, c.path)
		require.Equal(t, c.stream, stream, c.path)
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"  rtmp://Host.com/live/key  ":        "rtmp://Host.com/live/key",
		"rtmp://host:1935/live/key?a=1#frag":  "rtmp://host:1935/live/key?a=1#frag",
		"rtmps://host/live/key":               "rtmps://host/live/key",
		"rtmp://host/live/key%20with%20space": "rtmp://host/live/key%20with%20space",
	}
	for in, want := range cases {
		got, err := NormalizeURL(in)
		require.Nil(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := NormalizeURL("rtmp://host")
	require.NotNil(t, err)
	_, err = NormalizeURL("srt://host:9000")
	require.NotNil(t, err)
}

func TestToHTTPQueryURL(t *testing.T) {
	cases := map[string]string{
		"rtmp://host/live/key":                "http://host/live?app=live&stream=key",
		"rtmp://host:1935/live/key?t=1#x":     "http://host/live?app=live&stream=key&t=1#x",
		"rtmps://host:443/live/key":           "https://host/live?app=live&stream=key",
		"rtmp://host:8080/live/sub/key":       "http://host:8080/live?app=live&stream=sub/key",
		"rtmp://host/live":                    "http://host/live?app=live&stream=live",
		"rtmp://10.0.0.1:80/app/stream?x=y&z": "http://10.0.0.1/app?app=app&stream=stream&x=y&z",
	}
	for in, want := range cases {
		got, err := ToHTTPQueryURL(in)
		require.Nil(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ToHTTPQueryURL("rtmp://host/")
	require.NotNil(t, err)
}

func TestToHTTPFlvURL(t *testing.T) {
	got, err := ToHTTPFlvURL("rtmp://host:1935/live/key?t=1")
	require.Nil(t, err)
	require.Equal(t, "http://host:1935/live/key.flv?t=1", got)

	got, err = ToHTTPFlvURL("rtmps://host/live/key.FLV")
	require.Nil(t, err)
	require.Equal(t, "https://host/live/key.FLV", got)

	_, err = ToHTTPFlvURL("rtmp://host/live/")
	require.NotNil(t, err)

	urls := PullURLs("rtmp://host/live/key")
	require.Equal(t, []string{
		"rtmp://host/live/key",
		"http://host/live?app=live&stream=key",
		"http://host/live/key.flv",
	}, urls)
	require.Empty(t, PullURLs("not a url"))
}
