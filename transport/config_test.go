package transport

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/media/av"
)

func TestRetryDelay(t *testing.T) {
	p := RetryPolicy{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 10 * time.Second, BackoffMultiplier: 2}
	var prev time.Duration
	for i := 0; i < 8; i++ {
		d := p.Delay(i)
		require.True(t, d >= prev, "attempt %d", i)
		require.True(t, d <= p.MaxDelay)
		prev = d
	}
	require.Equal(t, time.Second, p.Delay(0))
	require.Equal(t, 4*time.Second, p.Delay(2))
	require.Equal(t, 10*time.Second, p.Delay(7))

	require.Equal(t, time.Duration(0), NoRetry().Delay(0))
	require.Equal(t, time.Duration(0), RetryPolicy{BaseDelay: time.Second}.Delay(3))
	require.Equal(t, 200*time.Millisecond, FixedDelay(3, 200*time.Millisecond).Delay(2))

	j := ExponentialBackoff(3, time.Second, 30*time.Second)
	for i := 0; i < 100; i++ {
		d := j.Delay(1)
		require.True(t, d >= time.Second && d <= 2*time.Second, "jitter %s", d)
	}

	def := DefaultRetryPolicy()
	require.Equal(t, 3, def.MaxRetries)
	require.Equal(t, 30*time.Second, def.MaxDelay)
	require.True(t, def.Jitter)
}

func TestRtmpValidate(t *testing.T) {
	r := NewRtmpConfig("").Validate()
	require.False(t, r.Valid)
	require.Equal(t, []string{"Push URL cannot be empty"}, r.Errors)

	r = NewRtmpConfig("http://h/app/key").Validate()
	require.Equal(t, []string{"Push URL must start with rtmp:// or rtmps://"}, r.Errors)

	require.True(t, NewRtmpConfig("RTMPS://h/app/key").Validate().Valid)

	cfg := NewRtmpConfig("rtmp://h/app/key")
	cfg.ChunkSize = 64
	r = cfg.Validate()
	require.True(t, r.Valid)
	require.Equal(t, []string{"Very small chunk size may affect performance"}, r.Warnings)

	cfg.ChunkSize = 0
	cfg.ConnectTimeout = 0
	r = cfg.Validate()
	require.Equal(t, 2, len(r.Errors))
	se, ok := errs.AsStreamError(r.Err())
	require.True(t, ok)
	require.Equal(t, errs.KindInvalidParameter, se.Kind)
	require.False(t, se.Recoverable)
}

func TestSrtValidate(t *testing.T) {
	cfg := NewSrtConfig("srt://h:9000")
	require.True(t, cfg.Validate().Valid)

	cfg.Latency = 10 * time.Millisecond
	require.Equal(t, []string{"Very low latency may cause packet loss"}, cfg.Validate().Warnings)

	cfg.Latency = 0
	require.False(t, cfg.Validate().Valid)

	cfg = NewSrtConfig("srt://h:9000")
	cfg.Encryption = SrtEncryptionAES128
	r := cfg.Validate()
	require.False(t, r.Valid)
	se, _ := errs.AsStreamError(r.Err())
	require.Equal(t, errs.KindUnsupportedConfiguration, se.Kind)

	require.False(t, NewSrtConfig("udp://h:9000").Validate().Valid)
	require.False(t, NewWebRtcConfig("https://signal").Validate().Valid)
}

func TestMediaValidate(t *testing.T) {
	require.True(t, ValidateAudioConfig(av.DefaultAudioConfig()).Valid)
	a := av.DefaultAudioConfig()
	a.SampleRate = 45000
	a.ChannelCount = 3
	require.Equal(t, 2, len(ValidateAudioConfig(a).Errors))

	require.True(t, ValidateVideoConfig(av.DefaultVideoConfig()).Valid)
	v := av.DefaultVideoConfig()
	v.MinBps = v.MaxBps + 1
	require.Equal(t, []string{"Min bitrate cannot exceed max bitrate"}, ValidateVideoConfig(v).Errors)
}

func TestDetectProtocol(t *testing.T) {
	for url, want := range map[string]Protocol{
		"rtmp://h/app/key":  ProtocolRTMP,
		"RTMPS://h/app/key": ProtocolRTMP,
		" srt://h:9000":     ProtocolSRT,
	} {
		got, err := DetectProtocol(url)
		require.Nil(t, err, url)
		require.Equal(t, want, got)
	}
	_, err := DetectProtocol("http://h/live.flv")
	se, ok := errs.AsStreamError(err)
	require.True(t, ok)
	require.Equal(t, errs.KindUnsupportedConfiguration, se.Kind)

	cfg, err := ConfigFromURL("srt://h:9000")
	require.Nil(t, err)
	require.Equal(t, 200*time.Millisecond, cfg.(SrtConfig).Latency)

	cfg, err = ConfigFromURL("rtmp://h/app/key")
	require.Nil(t, err)
	require.Equal(t, 3, cfg.(RtmpConfig).RetryPolicy.MaxRetries)
	require.Equal(t, 1, cfg.Meta().Priority)
}

func TestProtocolMeta(t *testing.T) {
	p, err := ParseProtocol("RTMPS")
	require.Nil(t, err)
	require.Equal(t, ProtocolRTMP, p)
	_, err = ParseProtocol("hls")
	require.NotNil(t, err)

	require.Equal(t, "WebRTC", ProtocolWebRTC.DisplayName())
	require.Equal(t, "SRT", ProtocolSRT.DisplayName())
	require.Equal(t, 3*time.Second, ProtocolRTMP.DefaultLatency())
	require.False(t, ProtocolRTMP.SupportsLowLatency())
	require.True(t, ProtocolSRT.SupportsLowLatency())
}

func TestStreamSender(t *testing.T) {
	d := &fakeDialer{}
	s := NewStreamSender(WithDialer(d.dial), WithTracks(true, false))

	var kbps, fps int
	s.SetOnStatsListener(func(k, f int) { kbps, fps = k, f })

	require.NotNil(t, s.ConfigureVideo(av.VideoConfig{}))
	require.Nil(t, s.ConfigureVideo(av.DefaultVideoConfig()))
	require.Nil(t, s.PrepareVideoSurface(av.DefaultVideoConfig()))

	// 没有StartVideo时丢弃
	require.Nil(t, s.PushVideo(keyFrame(0)))

	s.StartVideo()
	se, ok := errs.AsStreamError(s.PushVideo(keyFrame(0)))
	require.True(t, ok)
	require.Equal(t, errs.KindInvalidState, se.Kind)

	require.NotNil(t, s.Connect(context.Background(), "http://h/x"))
	require.Nil(t, s.Connect(context.Background(), "rtmp://h/app/key"))
	require.Equal(t, StateConnected, s.Transport().State().Kind)

	for i := 0; i < 40; i++ {
		require.Nil(t, s.PushVideo(keyFrame(time.Duration(i)*40*time.Millisecond)))
	}
	require.Equal(t, StateStreaming, s.Transport().State().Kind)
	t.Logf("kbps=%d fps=%d", kbps, fps)

	s.UpdateVideoBps(800)
	require.Equal(t, 800, s.Transport().(*RtmpTransport).TargetBitrate())

	require.Nil(t, s.Close())
	require.Nil(t, s.Transport())
	require.Nil(t, s.Close())
}

func TestMockSender(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := NewMockSender(ctrl)
	m.EXPECT().Connect(gomock.Any(), "rtmp://h/app/key").Return(nil)
	m.EXPECT().StartVideo()
	m.EXPECT().PushVideo(gomock.Any()).Return(nil).Times(2)

	var s Sender = m
	require.Nil(t, s.Connect(context.Background(), "rtmp://h/app/key"))
	s.StartVideo()
	require.Nil(t, s.PushVideo(keyFrame(0)))
	require.Nil(t, s.PushVideo(keyFrame(40*time.Millisecond)))
}

func TestWithDefaultID(t *testing.T) {
	cfg := NewRtmpConfig("rtmp://127.0.0.1/live/key")
	require.Equal(t, cfg, WithDefaultID(cfg))

	cfg.ID = ""
	got := WithDefaultID(cfg)
	require.NotEmpty(t, got.Meta().ID)
	require.Equal(t, "", cfg.ID)
	require.Equal(t, cfg.PushURL, got.(RtmpConfig).PushURL)

	sc := &SrtConfig{ServerURL: "srt://127.0.0.1:9000"}
	gotSrt := WithDefaultID(sc)
	require.NotEmpty(t, gotSrt.Meta().ID)
	require.Empty(t, sc.ID)
	require.Nil(t, WithDefaultID(nil))
}
