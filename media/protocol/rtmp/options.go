package rtmp

import (
	"crypto/tls"
	"time"
)

var DefaultOptions = NewOptions()

// rtmp连接的参数选项
type Options struct {
	ConnectTimeout   time.Duration // 握手+connect+publish整体超时
	ReadWriteTimeout time.Duration
	ReadBufferSize   int // 单位: 字节
	WriteBufferSize  int // 单位: 字节
	ChunkSize        int // 单位：字节
	TCPNoDelay       bool
	WindowAckSize    uint32
	FlashVer         string
	TLSConfig        *tls.Config
	DebugFile        string // 非空时把收发的chunk记录到文件
	RoleID           string
}

// rtmp连接的参数选项设置函数
type Option func(*Options)

// NewOptions 创建rtmp连接选项
func NewOptions() Options {
	return Options{
		ConnectTimeout:   time.Second * 10,
		ReadWriteTimeout: time.Second * 10,
		ReadBufferSize:   4 * 1024,
		WriteBufferSize:  64 * 1024,
		ChunkSize:        4096,
		TCPNoDelay:       true,
		WindowAckSize:    5000000,
		FlashVer:         "MAC 22,0,0,192",
	}
}

// WithConnectTimeout 建立连接(含握手和publish)的超时时间
func WithConnectTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.ConnectTimeout = timeout
	}
}

// WithReadWriteTimeout 设置rtmp连接单次读写的超时时间
func WithReadWriteTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.ReadWriteTimeout = timeout
	}
}

// WithReadBufferSize 设置rtmp连接读缓存的大小
func WithReadBufferSize(size int) Option {
	return func(opts *Options) {
		opts.ReadBufferSize = size
	}
}

// WithWriteBufferSize 设置rtmp连接写缓存的大小
func WithWriteBufferSize(size int) Option {
	return func(opts *Options) {
		opts.WriteBufferSize = size
	}
}

// WithChunkSize 设置rtmp的ChunkSize
func WithChunkSize(size int) Option {
	return func(opts *Options) {
		opts.ChunkSize = size
	}
}

// WithTCPNoDelay ...
func WithTCPNoDelay(noDelay bool) Option {
	return func(opts *Options) {
		opts.TCPNoDelay = noDelay
	}
}

// WithTLSConfig rtmps使用的tls配置, 为空时用默认配置
func WithTLSConfig(cfg *tls.Config) Option {
	return func(opts *Options) {
		opts.TLSConfig = cfg
	}
}

// WithDebugFile 记录chunk收发明细
func WithDebugFile(path string) Option {
	return func(opts *Options) {
		opts.DebugFile = path
	}
}

// WithRoleID 设置RoleID, 出现在debug记录中
func WithRoleID(role string) Option {
	return func(opts *Options) {
		opts.RoleID = role
	}
}
