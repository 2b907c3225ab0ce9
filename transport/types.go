package transport

import (
	"fmt"
	"strings"
	"time"

	"github.com/bugVanisher/avpush/common/errs"
)

// Protocol 传输协议
type Protocol int

const (
	ProtocolRTMP Protocol = iota + 1
	ProtocolSRT
	ProtocolWebRTC
)

func (p Protocol) String() string {
	switch p {
	case ProtocolRTMP:
		return "rtmp"
	case ProtocolSRT:
		return "srt"
	case ProtocolWebRTC:
		return "webrtc"
	}
	return "unknown"
}

// DisplayName ...
func (p Protocol) DisplayName() string {
	switch p {
	case ProtocolWebRTC:
		return "WebRTC"
	}
	return strings.ToUpper(p.String())
}

// DefaultLatency 协议典型的端到端延迟
func (p Protocol) DefaultLatency() time.Duration {
	switch p {
	case ProtocolRTMP:
		return 3000 * time.Millisecond
	case ProtocolSRT:
		return 500 * time.Millisecond
	case ProtocolWebRTC:
		return 1000 * time.Millisecond
	}
	return 0
}

func (p Protocol) SupportsLowLatency() bool {
	return p == ProtocolSRT || p == ProtocolWebRTC
}

// ParseProtocol 不区分大小写
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rtmp", "rtmps":
		return ProtocolRTMP, nil
	case "srt":
		return ProtocolSRT, nil
	case "webrtc":
		return ProtocolWebRTC, nil
	}
	return 0, fmt.Errorf("unknown protocol %q", s)
}

// StateKind 传输连接状态
type StateKind int

const (
	StateDisconnected StateKind = iota
	StateConnecting
	StateConnected
	StateStreaming
	StateReconnecting
	StateError
)

func (k StateKind) String() string {
	switch k {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	}
	return "unknown"
}

// State 只有 StateError 带 Err
type State struct {
	Kind StateKind
	Err  *errs.StreamError
}

func Disconnected() State { return State{Kind: StateDisconnected} }

func ErrorState(err *errs.StreamError) State { return State{Kind: StateError, Err: err} }

// Healthy Connected或Streaming, 可以发送数据
func (s State) Healthy() bool {
	return s.Kind == StateConnected || s.Kind == StateStreaming
}

func (s State) String() string {
	if s.Kind == StateError && s.Err != nil {
		return "error(" + s.Err.Error() + ")"
	}
	return s.Kind.String()
}

// StateObserver 在状态变更的临界区内被调用, 不能回调Connect/Disconnect
type StateObserver func(id string, prev, next State)

// Quality 连接质量, 数值越大越好
type Quality int

const (
	QualityPoor Quality = iota
	QualityFair
	QualityGood
	QualityExcellent
)

func (q Quality) String() string {
	switch q {
	case QualityExcellent:
		return "excellent"
	case QualityGood:
		return "good"
	case QualityFair:
		return "fair"
	}
	return "poor"
}

// QualityFor 按状态和rtt/丢包率(百分比)推导质量
func QualityFor(state StateKind, rtt time.Duration, lossPercent float64) Quality {
	switch state {
	case StateStreaming:
		ms := rtt.Milliseconds()
		switch {
		case ms < 50 && lossPercent < 0.1:
			return QualityExcellent
		case ms < 150 && lossPercent < 1.0:
			return QualityGood
		case ms < 300 && lossPercent < 3.0:
			return QualityFair
		}
		return QualityPoor
	case StateConnected:
		return QualityGood
	case StateConnecting, StateReconnecting:
		return QualityFair
	}
	return QualityPoor
}

// EstimatedRTT 没有测量值时按质量估算
func EstimatedRTT(q Quality) time.Duration {
	switch q {
	case QualityExcellent:
		return 30 * time.Millisecond
	case QualityGood:
		return 100 * time.Millisecond
	case QualityFair:
		return 250 * time.Millisecond
	}
	return 500 * time.Millisecond
}

// Stats 单个传输的统计, 按固定间隔刷新
type Stats struct {
	TransportID    string        `json:"transport_id"`
	Protocol       string        `json:"protocol"`
	State          string        `json:"state"`
	BytesSent      uint64        `json:"bytes_sent"`
	PacketsLost    uint64        `json:"packets_lost"`
	RTT            time.Duration `json:"rtt"`
	Jitter         time.Duration `json:"jitter"`
	Bandwidth      int64         `json:"bandwidth"` // bps
	ConnectionTime time.Duration `json:"connection_time"`
}

// 能力
const (
	CapAdaptiveBitrate   = "adaptive_bitrate"
	CapReconnection      = "reconnection"
	CapStatistics        = "statistics"
	CapQualityMonitoring = "quality_monitoring"
	CapLowLatency        = "low_latency"
	CapEncryption        = "encryption"
	CapAuthentication    = "authentication"
)
