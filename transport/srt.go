package transport

import (
	"context"

	"github.com/bugVanisher/avpush/media/protocol/srt"
	"github.com/bugVanisher/avpush/utils"
)

// SrtTransport 通过SRT推送FLV字节流
type SrtTransport struct {
	*streamTransport
	cfg SrtConfig
}

var _ Transport = (*SrtTransport)(nil)

func NewSrtTransport(cfg SrtConfig, opt ...Option) *SrtTransport {
	opts := DefaultOptions()
	for _, o := range opt {
		o(&opts)
	}
	if cfg.ID == "" {
		cfg.ID = NewID()
	}
	dial := opts.Dialer
	if dial == nil {
		dial = srtDialer(cfg, opts)
	}
	return &SrtTransport{
		streamTransport: newStreamTransport(cfg.ID, ProtocolSRT, cfg.Priority, cfg.ServerURL, cfg.RetryPolicy, dial, opts),
		cfg:             cfg,
	}
}

func srtDialer(cfg SrtConfig, opts Options) Dialer {
	sopts := []srt.Option{
		srt.WithConnectTimeout(cfg.ConnectTimeout),
		srt.WithLatency(cfg.Latency),
		srt.WithStreamID(cfg.StreamID),
		srt.WithTracks(opts.HasVideo, opts.HasAudio),
	}
	return func(ctx context.Context, url string) (Conn, error) {
		c, err := srt.Dial(ctx, url, sopts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func (t *SrtTransport) Config() SrtConfig {
	return t.cfg
}

func (t *SrtTransport) ProtocolStats() map[string]interface{} {
	return map[string]interface{}{
		"latency_ms":      t.cfg.Latency.Milliseconds(),
		"encryption":      t.cfg.Encryption.String(),
		"stream_id":       t.cfg.StreamID,
		"payload_size":    srt.PayloadSize,
		"connection_url":  utils.MaskURL(t.cfg.ServerURL),
		"retry_count":     t.RetryCount(),
		"is_reconnecting": t.reconnecting(),
	}
}

func (t *SrtTransport) Capabilities() []string {
	caps := append(t.baseCapabilities(), CapLowLatency)
	if t.cfg.Encryption != SrtEncryptionNone {
		caps = append(caps, CapEncryption)
	}
	return caps
}

func (t *SrtTransport) SupportsCapability(capability string) bool {
	return contains(t.Capabilities(), capability)
}
