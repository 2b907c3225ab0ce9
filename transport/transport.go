package transport

import (
	"context"
	"time"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/media/av"
	"github.com/bugVanisher/avpush/media/container/flv/flvio"
	"github.com/bugVanisher/avpush/metrics"
)

//go:generate mockgen -destination=mock_transport.go -package=transport github.com/bugVanisher/avpush/transport Transport

// Transport 一条推流连接, 自己维护连接状态机和重连
//
// 传输层的错误只通过状态(StateError)暴露, Send*返回的错误仅供调用方统计.
type Transport interface {
	ID() string
	Protocol() Protocol
	Priority() int

	State() State
	Stats() Stats
	// Subscribe 返回取消订阅的函数
	Subscribe(observer StateObserver) (cancel func())

	Connect(ctx context.Context) error
	Disconnect() error

	SendAudioData(frame av.Frame) error
	SendVideoData(frame av.Frame) error

	// UpdateBitrate 只转给编码器, 不影响连接状态
	UpdateBitrate(bps int)
	UpdateVideoConfig(cfg av.VideoConfig)
	UpdateAudioConfig(cfg av.AudioConfig, asc []byte)
	UpdateVideoParameterSets(params [][]byte)

	ConnectionQuality() Quality
	ProtocolStats() map[string]interface{}
	SupportsCapability(capability string) bool
	Capabilities() []string
}

// Conn 传输下层承载FLV tag的连接, rtmp.Conn 和 *srt.Conn 都满足
type Conn interface {
	WriteTags(tags []flvio.Tag) error
	Close() error
	Done() <-chan struct{}
	Err() error
	TxBytes() uint64
	RTT() time.Duration
}

// Dialer 建立连接, 返回时已可写数据
type Dialer func(ctx context.Context, url string) (Conn, error)

const DefaultStatsInterval = time.Second

type Options struct {
	HasVideo      bool
	HasAudio      bool
	StatsInterval time.Duration
	Metrics       *metrics.Metrics
	// Dialer 为空时按协议使用rtmp.Dial或srt.Dial
	Dialer Dialer
	// OnBitrate UpdateBitrate的去向, 一般是视频编码器
	OnBitrate func(bps int)
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		HasVideo:      true,
		HasAudio:      true,
		StatsInterval: DefaultStatsInterval,
	}
}

func WithTracks(hasVideo, hasAudio bool) Option {
	return func(opts *Options) {
		opts.HasVideo = hasVideo
		opts.HasAudio = hasAudio
	}
}

func WithStatsInterval(d time.Duration) Option {
	return func(opts *Options) {
		opts.StatsInterval = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

func WithDialer(d Dialer) Option {
	return func(opts *Options) {
		opts.Dialer = d
	}
}

func WithBitrateHandler(fn func(bps int)) Option {
	return func(opts *Options) {
		opts.OnBitrate = fn
	}
}

// New 按配置类型创建传输, 配置先校验
func New(cfg Config, opt ...Option) (Transport, error) {
	if res := cfg.Validate(); !res.Valid {
		return nil, res.Err()
	}
	switch c := cfg.(type) {
	case RtmpConfig:
		return NewRtmpTransport(c, opt...), nil
	case *RtmpConfig:
		return NewRtmpTransport(*c, opt...), nil
	case SrtConfig:
		return NewSrtTransport(c, opt...), nil
	case *SrtConfig:
		return NewSrtTransport(*c, opt...), nil
	}
	return nil, errs.ConfigurationError(errs.KindUnsupportedConfiguration, "no transport for protocol "+cfg.Protocol().String())
}
