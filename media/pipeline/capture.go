package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/media/av"
)

// EncoderCallback 编码器回调, 可能来自编码器自己的goroutine
type EncoderCallback interface {
	OnEncodedFrame(data []byte, ts time.Duration, keyFrame bool)
	OnOutputFormatChanged(format av.FormatDescriptor)
	OnError(msg string)
}

// Encoder 外部的采集+编码器
type Encoder interface {
	Start(cb EncoderCallback) error
	Stop() error
}

// BitrateController 支持动态码率的视频编码器
type BitrateController interface {
	SetBitrate(bps int) error
}

// FormatListener 接收编码器输出格式(参数集/ASC)
type FormatListener interface {
	OnFormat(format av.FormatDescriptor)
}

const (
	nodeIdle int32 = iota
	nodeRunning
	nodePaused
	nodeStopped
	nodeReleased
)

type captureNode struct {
	name      string
	mediaType av.MediaType
	encoder   Encoder
	// cb 交给编码器的回调, 子类型覆盖OnEncodedFrame时指向自己
	cb  EncoderCallback
	Out Pad[av.Frame]

	// emit持有读锁, Stop持有写锁, Stop返回后不会再emit
	mu    sync.RWMutex
	state int32

	formatSeen     atomic.Bool
	formatListener FormatListener
	onError        func(error)
	emitted        atomic.Uint64
	dropped        atomic.Uint64
}

func (n *captureNode) Name() string {
	return n.name
}

func (n *captureNode) Role() Role {
	return RoleSource
}

// SetFormatListener 需在Start之前设置
func (n *captureNode) SetFormatListener(l FormatListener) {
	n.formatListener = l
}

// SetErrorListener 编码器报错时回调
func (n *captureNode) SetErrorListener(f func(error)) {
	n.onError = f
}

func (n *captureNode) Start() error {
	n.mu.Lock()
	switch n.state {
	case nodeRunning, nodePaused:
		n.mu.Unlock()
		return nil
	case nodeReleased:
		n.mu.Unlock()
		return errs.InvalidState("%s: start after release", n.name)
	}
	n.state = nodeRunning
	n.mu.Unlock()

	if err := n.encoder.Start(n.cb); err != nil {
		n.mu.Lock()
		n.state = nodeStopped
		n.mu.Unlock()
		return errors.Wrapf(err, "%s: start encoder", n.name)
	}
	log.Debug().Str("node", n.name).Msg("capture started")
	return nil
}

func (n *captureNode) Pause() {
	n.mu.Lock()
	if n.state == nodeRunning {
		n.state = nodePaused
	}
	n.mu.Unlock()
}

func (n *captureNode) Resume() {
	n.mu.Lock()
	if n.state == nodePaused {
		n.state = nodeRunning
	}
	n.mu.Unlock()
}

// Stop 幂等
func (n *captureNode) Stop() {
	n.mu.Lock()
	if n.state != nodeRunning && n.state != nodePaused {
		n.mu.Unlock()
		return
	}
	n.state = nodeStopped
	n.mu.Unlock()

	if err := n.encoder.Stop(); err != nil {
		log.Warn().Err(err).Str("node", n.name).Msg("stop encoder")
	}
	log.Debug().Str("node", n.name).Uint64("emitted", n.emitted.Load()).Uint64("dropped", n.dropped.Load()).Msg("capture stopped")
}

func (n *captureNode) Release() {
	n.Stop()
	n.mu.Lock()
	n.state = nodeReleased
	n.mu.Unlock()
	n.Out.Disconnect()
}

// Emitted 已发出的帧数
func (n *captureNode) Emitted() uint64 {
	return n.emitted.Load()
}

// Dropped 因未运行/没有格式信息而丢弃的帧数
func (n *captureNode) Dropped() uint64 {
	return n.dropped.Load()
}

func (n *captureNode) OnOutputFormatChanged(format av.FormatDescriptor) {
	format.Type = n.mediaType
	if n.formatListener != nil {
		n.formatListener.OnFormat(format)
	}
	n.formatSeen.Store(true)
}

func (n *captureNode) OnError(msg string) {
	err := errs.EncodingError(errs.KindHardwareEncoderFailed, n.name+": "+msg)
	log.Error().Err(err).Str("node", n.name).Msg("encoder error")
	if n.onError != nil {
		n.onError(err)
	}
}

func (n *captureNode) OnEncodedFrame(data []byte, ts time.Duration, keyFrame bool) {
	frame := av.Frame{Type: n.mediaType, Data: data, Timestamp: ts, KeyFrame: keyFrame && n.mediaType == av.Video}
	n.emit(frame)
}

func (n *captureNode) emit(frame av.Frame) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.state != nodeRunning || !n.formatSeen.Load() {
		n.dropped.Add(1)
		return
	}
	if err := n.Out.Emit(frame); err != nil {
		n.dropped.Add(1)
		if !errors.Is(err, ErrPadNotConnected) {
			log.Debug().Err(err).Str("node", n.name).Msg("emit frame")
		}
		return
	}
	n.emitted.Add(1)
}

// AudioCaptureNode 音频采集源
type AudioCaptureNode struct {
	captureNode
	muted atomic.Bool
}

func NewAudioCaptureNode(encoder Encoder) *AudioCaptureNode {
	n := &AudioCaptureNode{
		captureNode: captureNode{name: "audio-capture", mediaType: av.Audio, encoder: encoder},
	}
	n.cb = n
	return n
}

// SetMute 静音时丢弃音频帧
func (n *AudioCaptureNode) SetMute(mute bool) {
	n.muted.Store(mute)
}

// Muted ...
func (n *AudioCaptureNode) Muted() bool {
	return n.muted.Load()
}

func (n *AudioCaptureNode) OnEncodedFrame(data []byte, ts time.Duration, keyFrame bool) {
	if n.muted.Load() {
		n.dropped.Add(1)
		return
	}
	n.captureNode.OnEncodedFrame(data, ts, false)
}

// VideoCaptureNode 视频采集源
type VideoCaptureNode struct {
	captureNode
	bitrate atomic.Int64
}

func NewVideoCaptureNode(encoder Encoder) *VideoCaptureNode {
	n := &VideoCaptureNode{
		captureNode: captureNode{name: "video-capture", mediaType: av.Video, encoder: encoder},
	}
	n.cb = n
	return n
}

// SetVideoBitrate 编码器不支持动态码率时返回错误
func (n *VideoCaptureNode) SetVideoBitrate(bps int) error {
	if bps <= 0 {
		return errs.ConfigurationError(errs.KindInvalidParameter, "video bitrate must be positive")
	}
	n.bitrate.Store(int64(bps))
	bc, ok := n.encoder.(BitrateController)
	if !ok {
		return errs.EncodingError(errs.KindFormatNotSupported, "encoder does not support bitrate update")
	}
	return bc.SetBitrate(bps)
}

// Bitrate 最近一次设置的码率, 未设置为0
func (n *VideoCaptureNode) Bitrate() int {
	return int(n.bitrate.Load())
}
