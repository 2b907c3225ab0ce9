package transport

import (
	"fmt"
	"strings"
	"time"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/media/av"
	"github.com/bugVanisher/avpush/media/container/flv"
)

// ValidationResult 配置校验结果, Warnings不影响Valid
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string

	unsupported bool
}

func (r *ValidationResult) fail(msg string) {
	r.Errors = append(r.Errors, msg)
}

func (r *ValidationResult) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func (r ValidationResult) done() ValidationResult {
	r.Valid = len(r.Errors) == 0
	return r
}

// Err 无效时返回配置类错误
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	kind := errs.KindInvalidParameter
	if r.unsupported {
		kind = errs.KindUnsupportedConfiguration
	}
	return errs.ConfigurationError(kind, strings.Join(r.Errors, "; "))
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func (c RtmpConfig) Validate() ValidationResult {
	var r ValidationResult
	url := strings.TrimSpace(c.PushURL)
	if url == "" {
		r.fail("Push URL cannot be empty")
	} else if !hasPrefixFold(url, "rtmp://") && !hasPrefixFold(url, "rtmps://") {
		r.fail("Push URL must start with rtmp:// or rtmps://")
	}
	if c.ConnectTimeout <= 0 {
		r.fail("Connect timeout must be positive")
	}
	switch {
	case c.ChunkSize <= 0:
		r.fail("Chunk size must be positive")
	case c.ChunkSize < 128:
		r.warn("Very small chunk size may affect performance")
	case c.ChunkSize > 65536:
		r.warn("Very large chunk size may cause compatibility issues")
	}
	validateRetry(&r, c.RetryPolicy)
	return r.done()
}

func (c SrtConfig) Validate() ValidationResult {
	var r ValidationResult
	url := strings.TrimSpace(c.ServerURL)
	if url == "" {
		r.fail("Server URL cannot be empty")
	} else if !hasPrefixFold(url, "srt://") {
		r.fail("Server URL must start with srt://")
	}
	if c.Latency <= 0 {
		r.fail("Latency must be positive")
	} else if c.Latency < 20*time.Millisecond {
		r.warn("Very low latency may cause packet loss")
	} else if c.Latency > 5*time.Second {
		r.warn("Very high latency defeats low latency streaming")
	}
	if c.ConnectTimeout <= 0 {
		r.fail("Connect timeout must be positive")
	}
	if len(c.StreamID) > 512 {
		r.fail("Stream ID cannot exceed 512 bytes")
	}
	if c.Encryption != SrtEncryptionNone {
		r.fail(fmt.Sprintf("Encryption %s is not supported", c.Encryption))
		r.unsupported = true
	}
	validateRetry(&r, c.RetryPolicy)
	return r.done()
}

func (c WebRtcConfig) Validate() ValidationResult {
	var r ValidationResult
	if strings.TrimSpace(c.SignalingURL) == "" {
		r.fail("Signaling URL cannot be empty")
	}
	r.fail("WebRTC transport is not available")
	r.unsupported = true
	return r.done()
}

func validateRetry(r *ValidationResult, p RetryPolicy) {
	if p.MaxRetries < 0 {
		r.fail("Max retries cannot be negative")
	}
	if p.MaxRetries > 0 && p.BaseDelay < 0 {
		r.fail("Retry base delay cannot be negative")
	}
	if p.MaxDelay > 0 && p.MaxDelay < p.BaseDelay {
		r.warn("Retry max delay is smaller than base delay")
	}
}

// ValidateAudioConfig 采样率必须有对应的MPEG-4索引
func ValidateAudioConfig(cfg av.AudioConfig) ValidationResult {
	var r ValidationResult
	if flv.SampleRateIndex(cfg.SampleRate) == flv.SampleRateUnsupported {
		r.fail(fmt.Sprintf("Unsupported audio sample rate %d", cfg.SampleRate))
	}
	if cfg.ChannelCount < 1 || cfg.ChannelCount > 2 {
		r.fail("Channel count must be 1 or 2")
	}
	if cfg.SampleSize != 8 && cfg.SampleSize != 16 {
		r.fail("Sample size must be 8 or 16 bits")
	}
	if cfg.MaxBps > 0 && cfg.MinBps > cfg.MaxBps {
		r.fail("Min bitrate cannot exceed max bitrate")
	}
	return r.done()
}

// ValidateVideoConfig ...
func ValidateVideoConfig(cfg av.VideoConfig) ValidationResult {
	var r ValidationResult
	if cfg.Width <= 0 || cfg.Height <= 0 {
		r.fail("Video size must be positive")
	}
	if cfg.FPS <= 0 {
		r.fail("Frame rate must be positive")
	} else if cfg.FPS > 60 {
		r.warn("Frame rate above 60 may not be supported by the server")
	}
	if cfg.MaxBps <= 0 {
		r.fail("Max bitrate must be positive")
	} else if cfg.MinBps > cfg.MaxBps {
		r.fail("Min bitrate cannot exceed max bitrate")
	}
	if cfg.Codec != av.H264 && cfg.Codec != av.H265 {
		r.fail("Video codec must be H264 or H265")
	}
	return r.done()
}
