package transport

import (
	"context"

	"github.com/bugVanisher/avpush/media/protocol/rtmp"
	"github.com/bugVanisher/avpush/utils"
)

// RtmpTransport rtmp/rtmps推流
type RtmpTransport struct {
	*streamTransport
	cfg RtmpConfig
}

var _ Transport = (*RtmpTransport)(nil)

func NewRtmpTransport(cfg RtmpConfig, opt ...Option) *RtmpTransport {
	opts := DefaultOptions()
	for _, o := range opt {
		o(&opts)
	}
	if cfg.ID == "" {
		cfg.ID = NewID()
	}
	dial := opts.Dialer
	if dial == nil {
		dial = rtmpDialer(cfg)
	}
	return &RtmpTransport{
		streamTransport: newStreamTransport(cfg.ID, ProtocolRTMP, cfg.Priority, cfg.PushURL, cfg.RetryPolicy, dial, opts),
		cfg:             cfg,
	}
}

func rtmpDialer(cfg RtmpConfig) Dialer {
	ropts := []rtmp.Option{
		rtmp.WithConnectTimeout(cfg.ConnectTimeout),
		rtmp.WithChunkSize(cfg.ChunkSize),
		rtmp.WithTCPNoDelay(cfg.TCPNoDelay || cfg.LowLatency),
		rtmp.WithRoleID(cfg.ID),
	}
	if cfg.LowLatency {
		// 小写缓存, 尽快把数据交给内核
		ropts = append(ropts, rtmp.WithWriteBufferSize(8*1024))
	}
	return func(ctx context.Context, url string) (Conn, error) {
		c, err := rtmp.Dial(ctx, url, ropts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func (t *RtmpTransport) Config() RtmpConfig {
	return t.cfg
}

func (t *RtmpTransport) ProtocolStats() map[string]interface{} {
	return map[string]interface{}{
		"rtmp_version":        "1.0",
		"chunk_size":          t.cfg.ChunkSize,
		"low_latency_enabled": t.cfg.LowLatency,
		"tcp_no_delay":        t.cfg.TCPNoDelay,
		"connection_url":      utils.MaskURL(t.cfg.PushURL),
		"retry_count":         t.RetryCount(),
		"is_reconnecting":     t.reconnecting(),
	}
}

func (t *RtmpTransport) Capabilities() []string {
	caps := append(t.baseCapabilities(), CapAuthentication)
	if t.cfg.LowLatency {
		caps = append(caps, CapLowLatency)
	}
	return caps
}

func (t *RtmpTransport) SupportsCapability(capability string) bool {
	return contains(t.Capabilities(), capability)
}
