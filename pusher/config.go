package pusher

import (
	"os"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/media/av"
	"github.com/bugVanisher/avpush/media/pipeline"
	"github.com/bugVanisher/avpush/metrics"
	"github.com/bugVanisher/avpush/transport"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AdvancedConfig 会话级的调度策略
type AdvancedConfig struct {
	// EnableSimultaneousPush 每个可用传输都发送全部帧, 否则只发主传输
	EnableSimultaneousPush bool
	// FallbackEnabled 主传输失败时切到下一个可用传输
	FallbackEnabled bool
	StatsInterval   time.Duration
}

func DefaultAdvancedConfig() AdvancedConfig {
	return AdvancedConfig{
		FallbackEnabled: true,
		StatsInterval:   DefaultStatsInterval,
	}
}

// EncoderFactory 创建外部采集编码器, 返回nil表示没有这一路媒体
type EncoderFactory interface {
	AudioEncoder(cfg av.AudioConfig) (pipeline.Encoder, error)
	VideoEncoder(cfg av.VideoConfig) (pipeline.Encoder, error)
}

// TransportFactory 默认为 transport.New
type TransportFactory func(cfg transport.Config, opt ...transport.Option) (transport.Transport, error)

type Options struct {
	Video    av.VideoConfig
	Audio    av.AudioConfig
	Advanced AdvancedConfig

	Encoders         EncoderFactory
	Listener         EventListener
	Metrics          *metrics.Metrics
	NewTransport     TransportFactory
	TransportOptions []transport.Option
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		Video:        av.DefaultVideoConfig(),
		Audio:        av.DefaultAudioConfig(),
		Advanced:     DefaultAdvancedConfig(),
		Listener:     nopListener{},
		NewTransport: transport.New,
	}
}

func WithVideoConfig(cfg av.VideoConfig) Option {
	return func(opts *Options) {
		opts.Video = cfg
	}
}

func WithAudioConfig(cfg av.AudioConfig) Option {
	return func(opts *Options) {
		opts.Audio = cfg
	}
}

func WithAdvanced(cfg AdvancedConfig) Option {
	return func(opts *Options) {
		opts.Advanced = cfg
	}
}

// WithSimultaneousPush ...
func WithSimultaneousPush(on bool) Option {
	return func(opts *Options) {
		opts.Advanced.EnableSimultaneousPush = on
	}
}

func WithFallback(on bool) Option {
	return func(opts *Options) {
		opts.Advanced.FallbackEnabled = on
	}
}

func WithStatsInterval(d time.Duration) Option {
	return func(opts *Options) {
		opts.Advanced.StatsInterval = d
	}
}

func WithEncoders(f EncoderFactory) Option {
	return func(opts *Options) {
		opts.Encoders = f
	}
}

func WithListener(l EventListener) Option {
	return func(opts *Options) {
		if l == nil {
			l = nopListener{}
		}
		opts.Listener = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

func WithTransportFactory(f TransportFactory) Option {
	return func(opts *Options) {
		opts.NewTransport = f
	}
}

// WithTransportOptions 追加到每个传输的创建参数后面
func WithTransportOptions(opt ...transport.Option) Option {
	return func(opts *Options) {
		opts.TransportOptions = append(opts.TransportOptions, opt...)
	}
}

// Duration 配置文件里写成 "1.5s" 这样的字符串, 纯数字按毫秒
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := time.ParseDuration(s)
		if err != nil {
			return errors.Wrapf(err, "parse duration %q", s)
		}
		*d = Duration(v)
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return errors.Wrapf(err, "parse duration %s", b)
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

type RetryFile struct {
	MaxRetries int      `json:"maxRetries"`
	BaseDelay  Duration `json:"baseDelay"`
	MaxDelay   Duration `json:"maxDelay"`
	Multiplier float64  `json:"multiplier"`
	Jitter     bool     `json:"jitter"`
}

// TransportFile 一个推流地址, 协议按url识别, 为空的字段取协议默认值
type TransportFile struct {
	URL            string     `json:"url"`
	Priority       *int       `json:"priority,omitempty"`
	Enabled        *bool      `json:"enabled,omitempty"`
	ConnectTimeout Duration   `json:"connectTimeout,omitempty"`
	Retry          *RetryFile `json:"retry,omitempty"`

	// rtmp
	ChunkSize  int  `json:"chunkSize,omitempty"`
	LowLatency bool `json:"lowLatency,omitempty"`

	// srt
	Latency  Duration `json:"latency,omitempty"`
	StreamID string   `json:"streamId,omitempty"`
}

type AdvancedFile struct {
	SimultaneousPush bool     `json:"simultaneousPush"`
	FallbackEnabled  *bool    `json:"fallbackEnabled,omitempty"`
	StatsInterval    Duration `json:"statsInterval,omitempty"`
}

// FileConfig push -c 读取的会话配置
type FileConfig struct {
	Name       string          `json:"name"`
	Source     string          `json:"source"`
	Loop       bool            `json:"loop"`
	Duration   Duration        `json:"duration"`
	Transports []TransportFile `json:"transports"`
	Video      *av.VideoConfig `json:"video,omitempty"`
	Audio      *av.AudioConfig `json:"audio,omitempty"`
	Advanced   AdvancedFile    `json:"advanced"`
}

// LoadConfig 从json文件读取会话配置
func LoadConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return ParseConfig(b)
}

func ParseConfig(b []byte) (*FileConfig, error) {
	var fc FileConfig
	if err := json.Unmarshal(b, &fc); err != nil {
		return nil, errs.ConfigurationError(errs.KindInvalidParameter, "config: "+err.Error())
	}
	if len(fc.Transports) == 0 {
		return nil, errs.ConfigurationError(errs.KindInvalidParameter, "config: no transports")
	}
	return &fc, nil
}

// TransportConfigs 把文件里的地址转换成传输配置
func (fc *FileConfig) TransportConfigs() ([]transport.Config, error) {
	out := make([]transport.Config, 0, len(fc.Transports))
	for i, tf := range fc.Transports {
		cfg, err := tf.config()
		if err != nil {
			return nil, errors.Wrapf(err, "transports[%d]", i)
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (tf TransportFile) config() (transport.Config, error) {
	cfg, err := transport.ConfigFromURL(tf.URL)
	if err != nil {
		return nil, err
	}
	switch c := cfg.(type) {
	case transport.RtmpConfig:
		tf.apply(&c.Base, &c.ConnectTimeout, &c.RetryPolicy)
		if tf.ChunkSize > 0 {
			c.ChunkSize = tf.ChunkSize
		}
		c.LowLatency = tf.LowLatency
		return c, nil
	case transport.SrtConfig:
		tf.apply(&c.Base, &c.ConnectTimeout, &c.RetryPolicy)
		if tf.Latency > 0 {
			c.Latency = time.Duration(tf.Latency)
		}
		c.StreamID = tf.StreamID
		return c, nil
	}
	return cfg, nil
}

func (tf TransportFile) apply(base *transport.Base, timeout *time.Duration, policy *transport.RetryPolicy) {
	if tf.Priority != nil {
		base.Priority = *tf.Priority
	}
	if tf.Enabled != nil {
		base.Enabled = *tf.Enabled
	}
	if tf.ConnectTimeout > 0 {
		*timeout = time.Duration(tf.ConnectTimeout)
	}
	if r := tf.Retry; r != nil {
		*policy = transport.RetryPolicy{
			MaxRetries:        r.MaxRetries,
			BaseDelay:         time.Duration(r.BaseDelay),
			MaxDelay:          time.Duration(r.MaxDelay),
			BackoffMultiplier: r.Multiplier,
			Jitter:            r.Jitter,
		}
	}
}

// Options 文件配置对应的会话参数
func (fc *FileConfig) Options() []Option {
	adv := DefaultAdvancedConfig()
	adv.EnableSimultaneousPush = fc.Advanced.SimultaneousPush
	if fc.Advanced.FallbackEnabled != nil {
		adv.FallbackEnabled = *fc.Advanced.FallbackEnabled
	}
	if fc.Advanced.StatsInterval > 0 {
		adv.StatsInterval = time.Duration(fc.Advanced.StatsInterval)
	}
	opts := []Option{WithAdvanced(adv)}
	if fc.Video != nil {
		opts = append(opts, WithVideoConfig(*fc.Video))
	}
	if fc.Audio != nil {
		opts = append(opts, WithAudioConfig(*fc.Audio))
	}
	return opts
}
