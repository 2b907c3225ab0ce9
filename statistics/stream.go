package statistics

import (
	"github.com/bugVanisher/avpush/media/av"
)

// AVFlow 一路推流的音视频统计
type AVFlow struct {
	VideoBitrate *Bitrate
	AudioBitrate *Bitrate
	VideoFPS     *FPS
	AudioFPS     *FPS
	VideoGop     *Gop
	VideoDelay   *Delay
}

// NewAVFlow 创建AVFlow实例
func NewAVFlow() *AVFlow {
	return &AVFlow{
		VideoBitrate: NewBitrate(),
		AudioBitrate: NewBitrate(),
		VideoFPS:     NewFPS(),
		AudioFPS:     NewFPS(),
		VideoGop:     NewGop(),
		VideoDelay:   NewDelay(),
	}
}

// Stat 统计一帧
func (s *AVFlow) Stat(frame av.Frame) {
	switch frame.Type {
	case av.Video:
		s.VideoBitrate.AddBytes(frame.Len())
		s.VideoFPS.Add()
		s.VideoGop.Add(frame.Timestamp, frame.KeyFrame)
		s.VideoDelay.Add(frame.Timestamp)
	case av.Audio:
		s.AudioBitrate.AddBytes(frame.Len())
		s.AudioFPS.Add()
	}
}

// StreamHandler 某一时刻的统计快照
type StreamHandler struct {
	VideoBitrate uint64  `json:"videoBitrate"`
	AudioBitrate uint64  `json:"audioBitrate"`
	VideoFPS     uint32  `json:"videoFps"`
	AudioFPS     uint32  `json:"audioFps"`
	VideoGop     float64 `json:"videoGop"`
	VideoDelay   int64   `json:"videoDelay"`
}

// Snapshot ...
func (s *AVFlow) Snapshot() StreamHandler {
	return StreamHandler{
		VideoBitrate: s.VideoBitrate.GetBitrate(),
		AudioBitrate: s.AudioBitrate.GetBitrate(),
		VideoFPS:     s.VideoFPS.GetFPS(),
		AudioFPS:     s.AudioFPS.GetFPS(),
		VideoGop:     s.VideoGop.GetGop(),
		VideoDelay:   s.VideoDelay.GetDelay(),
	}
}
