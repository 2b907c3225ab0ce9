package transport

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID 进程内唯一的传输ID
func NewID() string {
	return uuid.NewString()
}

// Base 各协议配置的公共部分, Priority越小越优先
type Base struct {
	ID       string
	Priority int
	Enabled  bool
}

func (b Base) Meta() Base { return b }

// WithDefaultID ID为空时返回分配了新ID的副本
func WithDefaultID(cfg Config) Config {
	if cfg == nil || cfg.Meta().ID != "" {
		return cfg
	}
	switch c := cfg.(type) {
	case RtmpConfig:
		c.ID = NewID()
		return c
	case *RtmpConfig:
		cp := *c
		cp.ID = NewID()
		return &cp
	case SrtConfig:
		c.ID = NewID()
		return c
	case *SrtConfig:
		cp := *c
		cp.ID = NewID()
		return &cp
	case WebRtcConfig:
		c.ID = NewID()
		return c
	case *WebRtcConfig:
		cp := *c
		cp.ID = NewID()
		return &cp
	}
	return cfg
}

// Config 传输配置, 按Protocol区分具体类型
type Config interface {
	Meta() Base
	Protocol() Protocol
	Validate() ValidationResult
}

type RtmpConfig struct {
	Base
	PushURL        string
	ConnectTimeout time.Duration
	RetryPolicy    RetryPolicy
	ChunkSize      int
	LowLatency     bool
	TCPNoDelay     bool
}

func NewRtmpConfig(pushURL string) RtmpConfig {
	return RtmpConfig{
		Base:           Base{ID: NewID(), Priority: 1, Enabled: true},
		PushURL:        strings.TrimSpace(pushURL),
		ConnectTimeout: 10 * time.Second,
		RetryPolicy:    DefaultRetryPolicy(),
		ChunkSize:      4096,
		TCPNoDelay:     true,
	}
}

func (c RtmpConfig) Protocol() Protocol { return ProtocolRTMP }

// SrtEncryption 目前只支持不加密
type SrtEncryption int

const (
	SrtEncryptionNone SrtEncryption = iota
	SrtEncryptionAES128
	SrtEncryptionAES192
	SrtEncryptionAES256
)

func (e SrtEncryption) String() string {
	switch e {
	case SrtEncryptionAES128:
		return "aes-128"
	case SrtEncryptionAES192:
		return "aes-192"
	case SrtEncryptionAES256:
		return "aes-256"
	}
	return "none"
}

type SrtConfig struct {
	Base
	ServerURL      string
	Latency        time.Duration
	Encryption     SrtEncryption
	StreamID       string
	ConnectTimeout time.Duration
	RetryPolicy    RetryPolicy
}

func NewSrtConfig(serverURL string) SrtConfig {
	return SrtConfig{
		Base:           Base{ID: NewID(), Priority: 2, Enabled: true},
		ServerURL:      strings.TrimSpace(serverURL),
		Latency:        500 * time.Millisecond,
		ConnectTimeout: 10 * time.Second,
		RetryPolicy:    DefaultRetryPolicy(),
	}
}

func (c SrtConfig) Protocol() Protocol { return ProtocolSRT }

// WebRtcConfig 只保留配置位, 没有对应的传输实现
type WebRtcConfig struct {
	Base
	SignalingURL string
	IceServers   []string
}

func NewWebRtcConfig(signalingURL string) WebRtcConfig {
	return WebRtcConfig{
		Base:         Base{ID: NewID(), Priority: 3, Enabled: true},
		SignalingURL: strings.TrimSpace(signalingURL),
	}
}

func (c WebRtcConfig) Protocol() Protocol { return ProtocolWebRTC }
