package downstream

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/media/av"
	"github.com/bugVanisher/avpush/media/codec/h264parser"
	"github.com/bugVanisher/avpush/media/container/flv"
	"github.com/bugVanisher/avpush/media/container/flv/flvio"
)

func testFLV(t *testing.T) []byte {
	var buf bytes.Buffer
	m := flv.NewMuxer(&buf, true, true)
	seq, err := flv.VideoSequenceHeader(av.H264, [][]byte{{0x67, 0x42, 0xC0, 0x1E}, {0x68, 0xCE, 0x3C, 0x80}})
	require.NoError(t, err)
	tags := []flvio.Tag{
		{Type: flvio.TAG_SCRIPTDATA, Data: flv.MetaData(true, true, av.DefaultVideoConfig(), av.DefaultAudioConfig())},
		{Type: flvio.TAG_VIDEO, Data: seq},
		{Type: flvio.TAG_AUDIO, Data: flv.AudioData(16, true, flv.AudioSpecificConfig(48000, 1))},
		{Type: flvio.TAG_VIDEO, Timestamp: 0, Data: flv.VideoData(av.H264, true, h264parser.JoinAVCC([][]byte{{0x65, 0x88}}))},
		{Type: flvio.TAG_AUDIO, Timestamp: 20, Data: flv.AudioData(16, false, []byte{0x21, 0x00})},
		{Type: flvio.TAG_VIDEO, Timestamp: 33, Data: flv.VideoData(av.H264, false, h264parser.JoinAVCC([][]byte{{0x41, 0x9A}}))},
	}
	require.NoError(t, m.WriteTags(tags))
	return buf.Bytes()
}

func TestFlvDownStreamerPull(t *testing.T) {
	body := testFLV(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "avpush", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "video/x-flv")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	var out bytes.Buffer
	d := NewFlvDownStreamer(srv.URL+"/live?app=live&stream=key", &out)
	got, err := d.Pull(context.Background())
	require.NoError(t, err)
	require.True(t, got)

	res := d.Result()
	require.Equal(t, 6, res.Tags)
	require.Equal(t, 2, res.VideoFrames)
	require.Equal(t, 1, res.KeyFrames)
	require.Equal(t, 1, res.AudioFrames)
	require.Equal(t, "h264", res.VideoCodec)
	require.Equal(t, 48000, res.SampleRate)
	require.Equal(t, 1, res.Channels)
	// 原样写出
	require.Equal(t, body, out.Bytes())
	t.Logf("result: %+v", res)
}

func TestFlvDownStreamerErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d := NewFlvDownStreamer(srv.URL+"/live", nil)
	got, err := d.Pull(context.Background())
	require.False(t, got)
	require.ErrorIs(t, err, errs.ErrStreamNotExist)

	d = NewFlvDownStreamer("http://127.0.0.1:1/live", nil)
	_, err = d.Pull(context.Background())
	require.ErrorIs(t, err, errs.ErrConnectURL)
}

func TestLaunchCancel(t *testing.T) {
	body := testFLV(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
		w.(http.Flusher).Flush()
		// 模拟直播流一直不结束
		<-r.Context().Done()
	}))
	defer srv.Close()

	d := NewFlvDownStreamer(srv.URL+"/live", nil)
	start := time.Now()
	got, err := Launch("verify", d, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, got)
	require.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	require.ErrorIs(t, Stop("verify"), errs.ErrStreamNotExist)
}
