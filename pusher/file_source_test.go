package pusher

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bugVanisher/avpush/media/av"
	"github.com/bugVanisher/avpush/media/codec/h264parser"
	"github.com/bugVanisher/avpush/media/container/flv"
	"github.com/bugVanisher/avpush/media/container/flv/flvio"
)

var (
	flvSPS = []byte{0x67, 0x42, 0xC0, 0x1E, 0xDA, 0x02}
	flvPPS = []byte{0x68, 0xCE, 0x3C, 0x80}
)

// buildFLV 1个视频序列头 + 3个视频帧(首帧关键帧), 1个AAC序列头 + 2个音频帧
func buildFLV(t *testing.T, withAudio bool) []byte {
	var buf bytes.Buffer
	m := flv.NewMuxer(&buf, true, withAudio)
	seq, err := flv.VideoSequenceHeader(av.H264, [][]byte{flvSPS, flvPPS})
	require.NoError(t, err)
	tags := []flvio.Tag{
		{Type: flvio.TAG_SCRIPTDATA, Data: flvio.EncodeAMF0("onMetaData", flvio.AMFECMAArray{{K: "width", V: 720.0}})},
		{Type: flvio.TAG_VIDEO, Timestamp: 0, Data: seq},
	}
	if withAudio {
		tags = append(tags, flvio.Tag{Type: flvio.TAG_AUDIO, Timestamp: 0, Data: flv.AudioData(16, true, flv.AudioSpecificConfig(44100, 2))})
	}
	for i := 0; i < 3; i++ {
		idr := []byte{0x41, 0x9A, byte(i)}
		if i == 0 {
			idr = []byte{0x65, 0x88, 0x84}
		}
		ts := uint32(i * 40)
		tags = append(tags, flvio.Tag{Type: flvio.TAG_VIDEO, Timestamp: ts, Data: flv.VideoData(av.H264, i == 0, h264parser.JoinAVCC([][]byte{idr}))})
		if withAudio && i < 2 {
			tags = append(tags, flvio.Tag{Type: flvio.TAG_AUDIO, Timestamp: ts + 10, Data: flv.AudioData(16, false, []byte{0x21, 0x10, byte(i)})})
		}
	}
	require.NoError(t, m.WriteTags(tags))
	return buf.Bytes()
}

func newMemorySource(b []byte, loop bool) *FileSource {
	s := NewFileSource("memory.flv", loop)
	s.SetRealtime(false)
	s.open = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	return s
}

type captured struct {
	data []byte
	ts   time.Duration
	key  bool
}

type captureCallback struct {
	mu      sync.Mutex
	formats []av.FormatDescriptor
	frames  []captured
	errors  []string
}

func (c *captureCallback) OnEncodedFrame(data []byte, ts time.Duration, keyFrame bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, captured{data: data, ts: ts, key: keyFrame})
}

func (c *captureCallback) OnOutputFormatChanged(format av.FormatDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.formats = append(c.formats, format)
}

func (c *captureCallback) OnError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, msg)
}

func (c *captureCallback) Frames() []captured {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]captured(nil), c.frames...)
}

func TestFileSourceReadsTags(t *testing.T) {
	src := newMemorySource(buildFLV(t, true), false)
	ae, err := src.AudioEncoder(av.DefaultAudioConfig())
	require.NoError(t, err)
	require.NotNil(t, ae)
	ve, err := src.VideoEncoder(av.DefaultVideoConfig())
	require.NoError(t, err)
	require.NotNil(t, ve)
	require.Nil(t, src.Done())

	audio, video := &captureCallback{}, &captureCallback{}
	require.NoError(t, ae.Start(audio))
	// 视频编码器启动之前不读文件
	require.Nil(t, src.Done())
	require.NoError(t, ve.Start(video))
	require.Error(t, ve.Start(video))

	select {
	case <-src.Done():
	case <-time.After(time.Second):
		t.Fatal("file source did not finish")
	}
	require.Equal(t, 1, src.Rounds())

	require.Len(t, video.formats, 1)
	require.Equal(t, av.H264, video.formats[0].VideoCodec)
	require.Equal(t, [][]byte{flvSPS, flvPPS}, video.formats[0].ParameterSets)
	frames := video.Frames()
	require.Len(t, frames, 3)
	require.True(t, frames[0].key)
	require.False(t, frames[1].key)
	require.Equal(t, 80*time.Millisecond, frames[2].ts)
	nalus, typ := h264parser.SplitNALUs(frames[0].data)
	require.Equal(t, h264parser.NALU_AVCC, typ)
	require.Equal(t, []byte{0x65, 0x88, 0x84}, nalus[0])

	require.Len(t, audio.formats, 1)
	rate, channels, err := flv.ParseAudioSpecificConfig(audio.formats[0].AudioSpecificConfig)
	require.NoError(t, err)
	require.Equal(t, 44100, rate)
	require.Equal(t, 2, channels)
	require.Len(t, audio.Frames(), 2)
	require.Equal(t, 10*time.Millisecond, audio.Frames()[0].ts)
	require.Empty(t, video.errors)

	require.NoError(t, ae.Stop())
	require.NoError(t, ve.Stop())
}

func TestFileSourceLoop(t *testing.T) {
	src := newMemorySource(buildFLV(t, false), true)
	ae, err := src.AudioEncoder(av.DefaultAudioConfig())
	require.NoError(t, err)
	require.Nil(t, ae)
	ve, err := src.VideoEncoder(av.DefaultVideoConfig())
	require.NoError(t, err)

	video := &captureCallback{}
	require.NoError(t, ve.Start(video))
	require.Eventually(t, func() bool { return src.Rounds() >= 2 }, time.Second, time.Millisecond)
	require.NoError(t, ve.Stop())
	require.NoError(t, ve.Stop())

	frames := video.Frames()
	require.GreaterOrEqual(t, len(frames), 6)
	// 第二轮接着第一轮的时间戳
	require.Equal(t, 80*time.Millisecond+loopGap, frames[3].ts)
	for i := 1; i < len(frames); i++ {
		require.Greater(t, frames[i].ts, frames[i-1].ts)
	}
}

func TestFileSourceRealtime(t *testing.T) {
	src := newMemorySource(buildFLV(t, false), false)
	src.SetRealtime(true)
	ve, err := src.VideoEncoder(av.DefaultVideoConfig())
	require.NoError(t, err)
	start := time.Now()
	require.NoError(t, ve.Start(&captureCallback{}))
	<-src.Done()
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	require.NoError(t, ve.Stop())
}

func TestFileSourceErrors(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "missing.flv"), false)
	_, err := src.VideoEncoder(av.DefaultVideoConfig())
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.flv")
	require.NoError(t, os.WriteFile(path, []byte("not a flv file at all"), 0o644))
	src = NewFileSource(path, false)
	_, err = src.AudioEncoder(av.DefaultAudioConfig())
	require.Error(t, err)
	t.Logf("err: %v", err)
}

func TestFileSourceSession(t *testing.T) {
	a := newFakeTransport("a", 0)
	src := newMemorySource(buildFLV(t, true), true)
	s := newTestSession([]*fakeTransport{a}, WithEncoders(src))
	require.NoError(t, s.Prepare())
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return a.video.Load() >= 6 && a.audio.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	s.Release()
}
