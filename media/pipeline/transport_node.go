package pipeline

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/media/av"
	"github.com/bugVanisher/avpush/statistics"
)

// Sink 帧的最终去向, 一般是一个transport或者会话
type Sink interface {
	SendAudioData(frame av.Frame) error
	SendVideoData(frame av.Frame) error
	UpdateAudioConfig(cfg av.AudioConfig, asc []byte)
	UpdateVideoConfig(cfg av.VideoConfig)
	UpdateVideoParameterSets(params [][]byte)
}

// SinkProvider 每帧调用一次, 返回nil表示当前没有可用的sink
type SinkProvider func() Sink

// StatsListener 码率kbps, 帧率
type StatsListener func(bitrateKbps, fps int)

var errNoSink = errs.InvalidState("transport node: no active sink")

// TransportNode 管线的终点, 音视频两个生产者可能并发调用
type TransportNode struct {
	AudioPad Pad[av.Frame]
	VideoPad Pad[av.Frame]

	mu       sync.RWMutex
	provider SinkProvider
	running  bool
	paused   bool

	audioCfg    av.AudioConfig
	asc         []byte
	videoCfg    av.VideoConfig
	videoParams [][]byte

	stats         *statistics.FrameStats
	statsListener StatsListener
}

func NewTransportNode(provider SinkProvider) *TransportNode {
	n := &TransportNode{
		provider: provider,
		audioCfg: av.DefaultAudioConfig(),
		videoCfg: av.DefaultVideoConfig(),
		stats:    statistics.NewFrameStats(statistics.DefaultFrameStatsWindow),
	}
	// 节点只做转发, pad在构造时就接好
	_ = n.AudioPad.Connect(n.consumeAudio)
	_ = n.VideoPad.Connect(n.consumeVideo)
	return n
}

func (n *TransportNode) Name() string {
	return "transport"
}

func (n *TransportNode) Role() Role {
	return RoleSink
}

func (n *TransportNode) Start() error {
	n.mu.Lock()
	n.running = true
	n.paused = false
	n.mu.Unlock()
	return nil
}

func (n *TransportNode) Pause() {
	n.mu.Lock()
	n.paused = true
	n.mu.Unlock()
}

func (n *TransportNode) Resume() {
	n.mu.Lock()
	n.paused = false
	n.mu.Unlock()
}

func (n *TransportNode) Stop() {
	n.mu.Lock()
	n.running = false
	n.mu.Unlock()
	n.stats.Reset()
}

func (n *TransportNode) Release() {
	n.Stop()
	n.mu.Lock()
	n.provider = nil
	n.mu.Unlock()
}

// SetSinkProvider 替换sink来源, 新sink会收到当前的音视频配置
func (n *TransportNode) SetSinkProvider(provider SinkProvider) {
	n.mu.Lock()
	n.provider = provider
	n.mu.Unlock()
	if sink := n.sink(); sink != nil {
		n.Configure(sink)
	}
}

// SetStatsListener ...
func (n *TransportNode) SetStatsListener(l StatsListener) {
	n.mu.Lock()
	n.statsListener = l
	n.mu.Unlock()
}

// UpdateAudioConfiguration asc为空时由sink根据cfg生成
func (n *TransportNode) UpdateAudioConfiguration(cfg av.AudioConfig, asc []byte) {
	n.mu.Lock()
	n.audioCfg = cfg
	if asc != nil {
		n.asc = asc
	}
	asc = n.asc
	n.mu.Unlock()
	if sink := n.sink(); sink != nil {
		sink.UpdateAudioConfig(cfg, asc)
	}
}

func (n *TransportNode) UpdateVideoConfiguration(cfg av.VideoConfig) {
	n.mu.Lock()
	n.videoCfg = cfg
	n.mu.Unlock()
	if sink := n.sink(); sink != nil {
		sink.UpdateVideoConfig(cfg)
	}
}

// OnFormat 接收采集节点转发的编码器输出格式
func (n *TransportNode) OnFormat(format av.FormatDescriptor) {
	switch format.Type {
	case av.Audio:
		n.mu.Lock()
		n.asc = format.AudioSpecificConfig
		cfg := n.audioCfg
		n.mu.Unlock()
		if sink := n.sink(); sink != nil {
			sink.UpdateAudioConfig(cfg, format.AudioSpecificConfig)
		}
	case av.Video:
		n.mu.Lock()
		if format.VideoCodec != 0 {
			n.videoCfg.Codec = format.VideoCodec
		}
		n.videoParams = format.ParameterSets
		cfg := n.videoCfg
		n.mu.Unlock()
		if sink := n.sink(); sink != nil {
			sink.UpdateVideoConfig(cfg)
			if len(format.ParameterSets) > 0 {
				sink.UpdateVideoParameterSets(format.ParameterSets)
			}
		}
	default:
		log.Warn().Str("type", format.Type.String()).Msg("transport node: unknown format")
	}
}

// Configure 把已知的音视频配置同步给sink
func (n *TransportNode) Configure(sink Sink) {
	n.mu.RLock()
	audioCfg, asc := n.audioCfg, n.asc
	videoCfg, params := n.videoCfg, n.videoParams
	n.mu.RUnlock()

	sink.UpdateAudioConfig(audioCfg, asc)
	sink.UpdateVideoConfig(videoCfg)
	if len(params) > 0 {
		sink.UpdateVideoParameterSets(params)
	}
}

// Stats 上一个统计窗口的码率和帧率
func (n *TransportNode) Stats() (bitrateKbps, fps int) {
	return n.stats.Last()
}

func (n *TransportNode) sink() Sink {
	n.mu.RLock()
	provider := n.provider
	n.mu.RUnlock()
	if provider == nil {
		return nil
	}
	return provider()
}

func (n *TransportNode) active() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.running && !n.paused
}

func (n *TransportNode) consumeAudio(frame av.Frame) error {
	if !n.active() {
		return nil
	}
	sink := n.sink()
	if sink == nil {
		return errNoSink
	}
	return sink.SendAudioData(frame)
}

func (n *TransportNode) consumeVideo(frame av.Frame) error {
	if !n.active() {
		return nil
	}
	if kbps, fps, ok := n.stats.Add(frame.Len()); ok {
		n.mu.RLock()
		l := n.statsListener
		n.mu.RUnlock()
		if l != nil {
			l(kbps, fps)
		}
	}
	sink := n.sink()
	if sink == nil {
		return errNoSink
	}
	return sink.SendVideoData(frame)
}
