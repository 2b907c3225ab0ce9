package rtmp

import (
	"context"
	"time"

	"github.com/bugVanisher/avpush/media/container/flv/flvio"
)

// Conn 包装了rtmp推流端的基础接口, Dial返回时已经publish成功
type Conn interface {
	// WriteTag 写一个音频/视频/脚本tag, 可并发调用
	WriteTag(tag flvio.Tag) error
	// WriteTags 多个tag只flush一次
	WriteTags(tags []flvio.Tag) error
	Close() error

	// Done 连接断开(读到错误或者Close)后关闭
	Done() <-chan struct{}
	// Err 连接断开的原因, Close导致的为nil
	Err() error

	URL() *URL
	RemoteAddr() string
	ChunkSize() int
	TxBytes() uint64
	RxBytes() uint64
	// RTT 握手阶段估算的往返时延
	RTT() time.Duration
}

// DialFunc 与Dial签名一致, 便于替换
type DialFunc func(ctx context.Context, rawurl string, opt ...Option) (Conn, error)
