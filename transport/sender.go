package transport

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/media/av"
	"github.com/bugVanisher/avpush/statistics"
	"github.com/bugVanisher/avpush/utils"
)

//go:generate mockgen -destination=mock_sender.go -package=transport github.com/bugVanisher/avpush/transport Sender

// Sender 面向编码器的推流接口, 一次Connect对应一个url
type Sender interface {
	ConfigureAudio(cfg av.AudioConfig, asc []byte) error
	ConfigureVideo(cfg av.VideoConfig) error
	// PrepareVideoSurface 返回编码器输入句柄, 没有硬件编码器时为nil
	PrepareVideoSurface(cfg av.VideoConfig) interface{}

	StartAudio()
	StopAudio()
	StartVideo()
	StopVideo()

	PushAudio(frame av.Frame) error
	PushVideo(frame av.Frame) error
	UpdateVideoBps(bps int)

	Connect(ctx context.Context, url string) error
	Close() error
	SetOnStatsListener(fn func(bitrateKbps, fps int))
}

// StreamSender 用Transport实现Sender, 协议按url识别
type StreamSender struct {
	opts []Option

	mu            sync.Mutex
	transport     Transport
	audioCfg      av.AudioConfig
	asc           []byte
	videoCfg      av.VideoConfig
	audioOn       bool
	videoOn       bool
	bps           int
	stats         *statistics.FrameStats
	statsListener func(bitrateKbps, fps int)
}

var _ Sender = (*StreamSender)(nil)

func NewStreamSender(opt ...Option) *StreamSender {
	return &StreamSender{
		opts:     opt,
		audioCfg: av.DefaultAudioConfig(),
		videoCfg: av.DefaultVideoConfig(),
		stats:    statistics.NewFrameStats(statistics.DefaultFrameStatsWindow),
	}
}

func (s *StreamSender) ConfigureAudio(cfg av.AudioConfig, asc []byte) error {
	if res := ValidateAudioConfig(cfg); !res.Valid {
		return res.Err()
	}
	s.mu.Lock()
	s.audioCfg, s.asc = cfg, asc
	t := s.transport
	s.mu.Unlock()
	if t != nil {
		t.UpdateAudioConfig(cfg, asc)
	}
	return nil
}

func (s *StreamSender) ConfigureVideo(cfg av.VideoConfig) error {
	if res := ValidateVideoConfig(cfg); !res.Valid {
		return res.Err()
	}
	s.mu.Lock()
	s.videoCfg = cfg
	t := s.transport
	s.mu.Unlock()
	if t != nil {
		t.UpdateVideoConfig(cfg)
	}
	return nil
}

// PrepareVideoSurface 编码在进程外完成, 这里只记录配置
func (s *StreamSender) PrepareVideoSurface(cfg av.VideoConfig) interface{} {
	if err := s.ConfigureVideo(cfg); err != nil {
		log.Warn().Err(err).Msg("[sender] prepare video surface")
	}
	return nil
}

func (s *StreamSender) StartAudio() { s.setMedia(&s.audioOn, true) }
func (s *StreamSender) StopAudio()  { s.setMedia(&s.audioOn, false) }
func (s *StreamSender) StartVideo() { s.setMedia(&s.videoOn, true) }

func (s *StreamSender) StopVideo() {
	s.setMedia(&s.videoOn, false)
	s.stats.Reset()
}

func (s *StreamSender) setMedia(flag *bool, on bool) {
	s.mu.Lock()
	*flag = on
	s.mu.Unlock()
}

func (s *StreamSender) active(video bool) (Transport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if video {
		return s.transport, s.videoOn
	}
	return s.transport, s.audioOn
}

func (s *StreamSender) PushAudio(frame av.Frame) error {
	t, on := s.active(false)
	if !on {
		return nil
	}
	if t == nil {
		return errs.InvalidState("sender not connected")
	}
	return t.SendAudioData(frame)
}

func (s *StreamSender) PushVideo(frame av.Frame) error {
	t, on := s.active(true)
	if !on {
		return nil
	}
	if t == nil {
		return errs.InvalidState("sender not connected")
	}
	err := t.SendVideoData(frame)
	if err == nil {
		if kbps, fps, ok := s.stats.Add(frame.Len()); ok {
			s.mu.Lock()
			fn := s.statsListener
			s.mu.Unlock()
			if fn != nil {
				fn(kbps, fps)
			}
		}
	}
	return err
}

func (s *StreamSender) UpdateVideoBps(bps int) {
	s.mu.Lock()
	s.bps = bps
	t := s.transport
	s.mu.Unlock()
	if t != nil {
		t.UpdateBitrate(bps)
	}
}

// Connect 已经连接时先关闭旧连接
func (s *StreamSender) Connect(ctx context.Context, url string) error {
	cfg, err := ConfigFromURL(url)
	if err != nil {
		return err
	}
	t, err := New(cfg, s.opts...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.transport
	s.transport = t
	audioCfg, asc, videoCfg, bps := s.audioCfg, s.asc, s.videoCfg, s.bps
	s.mu.Unlock()
	if old != nil {
		_ = old.Disconnect()
	}

	t.UpdateAudioConfig(audioCfg, asc)
	t.UpdateVideoConfig(videoCfg)
	if bps > 0 {
		t.UpdateBitrate(bps)
	}
	log.Info().Str("url", utils.MaskURL(url)).Str("protocol", cfg.Protocol().String()).Msg("[sender] connect")
	return t.Connect(ctx)
}

func (s *StreamSender) Close() error {
	s.mu.Lock()
	t := s.transport
	s.transport = nil
	s.statsListener = nil
	s.mu.Unlock()
	s.stats.Reset()
	if t == nil {
		return nil
	}
	return t.Disconnect()
}

func (s *StreamSender) SetOnStatsListener(fn func(bitrateKbps, fps int)) {
	s.mu.Lock()
	s.statsListener = fn
	s.mu.Unlock()
}

// Transport 当前连接, 未连接时为nil
func (s *StreamSender) Transport() Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}
