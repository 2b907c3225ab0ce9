package av

import (
	"fmt"
	"time"
)

// MediaType 帧的媒体类型
type MediaType uint8

const (
	Audio MediaType = iota + 1
	Video
)

func (m MediaType) String() string {
	switch m {
	case Audio:
		return "audio"
	case Video:
		return "video"
	}
	return "unknown"
}

// Frame 一帧编码后的数据. 发出后不再修改, Data 归下游只读
type Frame struct {
	Type      MediaType
	Data      []byte
	Timestamp time.Duration
	// KeyFrame 只对视频有意义
	KeyFrame bool
}

// NewAudioFrame ...
func NewAudioFrame(data []byte, ts time.Duration) Frame {
	return Frame{Type: Audio, Data: data, Timestamp: ts}
}

// NewVideoFrame ...
func NewVideoFrame(data []byte, ts time.Duration, keyFrame bool) Frame {
	return Frame{Type: Video, Data: data, Timestamp: ts, KeyFrame: keyFrame}
}

// Len 帧数据长度
func (f Frame) Len() int {
	return len(f.Data)
}

func (f Frame) String() string {
	return fmt.Sprintf("%s frame len=%d ts=%s key=%t", f.Type, len(f.Data), f.Timestamp, f.KeyFrame)
}
