package av

import "fmt"

// VideoCodec 视频编码类型
type VideoCodec uint8

const (
	H264 VideoCodec = iota + 1
	H265
)

func (c VideoCodec) String() string {
	switch c {
	case H264:
		return "h264"
	case H265:
		return "h265"
	}
	return "unknown"
}

// ParseVideoCodec 支持 h264/avc 与 h265/hevc
func ParseVideoCodec(s string) (VideoCodec, error) {
	switch s {
	case "", "h264", "H264", "avc", "AVC":
		return H264, nil
	case "h265", "H265", "hevc", "HEVC":
		return H265, nil
	}
	return 0, fmt.Errorf("unknown video codec %q", s)
}

func (c VideoCodec) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *VideoCodec) UnmarshalText(b []byte) (err error) {
	*c, err = ParseVideoCodec(string(b))
	return
}

// VideoConfig 视频编码参数, 码率单位kbps
type VideoConfig struct {
	Width          int        `json:"width"`
	Height         int        `json:"height"`
	FPS            int        `json:"fps"`
	MaxBps         int        `json:"maxBps"`
	MinBps         int        `json:"minBps"`
	IFrameInterval int        `json:"ifi"`
	Codec          VideoCodec `json:"codec"`
}

// DefaultVideoConfig 720x1280@30
func DefaultVideoConfig() VideoConfig {
	return VideoConfig{
		Width:          720,
		Height:         1280,
		FPS:            30,
		MaxBps:         1800,
		MinBps:         400,
		IFrameInterval: 2,
		Codec:          H264,
	}
}

// AudioConfig 音频编码参数, 码率单位kbps, SampleSize单位bit
type AudioConfig struct {
	SampleRate   int `json:"sampleRate"`
	ChannelCount int `json:"channelCount"`
	SampleSize   int `json:"sampleSize"`
	MaxBps       int `json:"maxBps"`
	MinBps       int `json:"minBps"`
}

// DefaultAudioConfig 44.1kHz 单声道 16bit AAC-LC
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:   44100,
		ChannelCount: 1,
		SampleSize:   16,
		MaxBps:       64,
		MinBps:       32,
	}
}

// Stereo ...
func (c AudioConfig) Stereo() bool {
	return c.ChannelCount >= 2
}

// FormatDescriptor 编码器输出格式变化时带出的带外配置
//
// 视频: H264 为 [SPS, PPS], H265 为 [VPS, SPS, PPS]; 音频: AAC AudioSpecificConfig
type FormatDescriptor struct {
	Type                MediaType
	VideoCodec          VideoCodec
	ParameterSets       [][]byte
	AudioSpecificConfig []byte
}
