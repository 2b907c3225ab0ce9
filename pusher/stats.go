package pusher

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/bugVanisher/avpush/statistics"
	"github.com/bugVanisher/avpush/transport"
)

const DefaultStatsInterval = time.Second

// StreamStats 会话的汇总统计, 每个StatsInterval刷新一次
type StreamStats struct {
	SessionDuration  time.Duration                     `json:"session_duration"`
	TotalBytesSent   uint64                            `json:"total_bytes_sent"`
	AverageBitrate   int64                             `json:"average_bitrate"` // bps
	FPS              uint32                            `json:"fps"`
	FramesSent       uint64                            `json:"frames_sent"`
	FramesDropped    uint64                            `json:"frames_dropped"`
	ActiveTransports int                               `json:"active_transports"`
	OverallQuality   string                            `json:"overall_quality"`
	Media            statistics.StreamHandler          `json:"media"`
	Transports       map[string]transport.Stats        `json:"transports"`
	Protocols        map[string]map[string]interface{} `json:"protocols,omitempty"`
}

// JSON 给api和日志用
func (s StreamStats) JSON() []byte {
	b, _ := jsoniter.Marshal(s)
	return b
}

// OverallQuality 没有可用传输为Poor, 全部可用为Excellent, 至少一半可用为Good, 否则Fair
func OverallQuality(states []transport.StateKind) transport.Quality {
	active := 0
	for _, st := range states {
		if st == transport.StateConnected || st == transport.StateStreaming {
			active++
		}
	}
	switch {
	case active == 0:
		return transport.QualityPoor
	case active == len(states):
		return transport.QualityExcellent
	case active >= len(states)/2:
		return transport.QualityGood
	}
	return transport.QualityFair
}

// averageBitrate bps
func averageBitrate(bytes uint64, d time.Duration) int64 {
	if d.Milliseconds() <= 0 {
		return 0
	}
	return int64(bytes) * 8 * 1000 / d.Milliseconds()
}
