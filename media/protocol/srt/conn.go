package srt

import (
	"context"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	srtgo "github.com/zsiec/srtgo"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/media/container/flv"
	"github.com/bugVanisher/avpush/media/container/flv/flvio"
	"github.com/bugVanisher/avpush/utils"
)

const protocolName = "srt"

// PayloadSize live模式下单个SRT包的最大负载(7个TS包大小)
const PayloadSize = 1316

var DefaultOptions = Options{
	ConnectTimeout: 10 * time.Second,
	Latency:        120 * time.Millisecond,
	HasVideo:       true,
	HasAudio:       true,
}

type Options struct {
	ConnectTimeout time.Duration
	Latency        time.Duration
	StreamID       string
	HasVideo       bool
	HasAudio       bool
}

type Option func(*Options)

func WithConnectTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.ConnectTimeout = timeout
	}
}

func WithLatency(latency time.Duration) Option {
	return func(opts *Options) {
		opts.Latency = latency
	}
}

// WithStreamID 为空时使用url里的streamid参数
func WithStreamID(id string) Option {
	return func(opts *Options) {
		opts.StreamID = id
	}
}

// WithTracks FLV文件头里的音视频标记
func WithTracks(hasVideo, hasAudio bool) Option {
	return func(opts *Options) {
		opts.HasVideo = hasVideo
		opts.HasAudio = hasAudio
	}
}

// dialSRT 测试里替换
var dialSRT = func(addr string, latency time.Duration, streamID string) (io.ReadWriteCloser, error) {
	cfg := srtgo.DefaultConfig()
	cfg.Latency = latency
	cfg.StreamID = streamID
	c, err := srtgo.Dial(addr, cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ParseURL srt://host:port[?streamid=...], 端口必填
func ParseURL(raw string) (addr, streamID string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", errors.Wrap(err, "srt: parse url")
	}
	if !strings.EqualFold(u.Scheme, "srt") {
		return "", "", errors.Errorf("srt: unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" || u.Port() == "" {
		return "", "", errors.Errorf("srt: url %s must have host and port", utils.MaskURL(raw))
	}
	return net.JoinHostPort(u.Hostname(), u.Port()), u.Query().Get("streamid"), nil
}

// Conn 以FLV字节流的形式通过SRT推流
type Conn struct {
	addr string
	sc   io.ReadWriteCloser
	pw   *packetWriter

	mu    sync.Mutex
	muxer *flv.Muxer

	rtt       time.Duration
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	errMu     sync.Mutex
	err       error
}

// Dial 连接srt服务端, 超时或ctx取消时放弃
func Dial(ctx context.Context, rawurl string, opt ...Option) (*Conn, error) {
	opts := DefaultOptions
	for _, o := range opt {
		o(&opts)
	}
	addr, streamID, err := ParseURL(rawurl)
	if err != nil {
		return nil, errs.ConfigurationError(errs.KindInvalidParameter, err.Error())
	}
	if opts.StreamID != "" {
		streamID = opts.StreamID
	}

	type dialResult struct {
		sc  io.ReadWriteCloser
		err error
	}
	ch := make(chan dialResult, 1)
	start := time.Now()
	go func() {
		sc, err := dialSRT(addr, opts.Latency, streamID)
		ch <- dialResult{sc, err}
	}()

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultOptions.ConnectTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	drain := func() {
		go func() {
			if res := <-ch; res.sc != nil {
				res.sc.Close()
			}
		}()
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, errs.ConnectionFailed(protocolName, "dial "+addr, res.err)
		}
		c := newConn(addr, res.sc, opts)
		c.rtt = time.Since(start)
		log.Info().Str("url", utils.MaskURL(rawurl)).Dur("rtt", c.rtt).Msg("[srt] connected")
		go c.readLoop()
		return c, nil
	case <-timer.C:
		drain()
		return nil, errs.TimeoutError(protocolName, "dial "+addr, timeout)
	case <-ctx.Done():
		drain()
		return nil, errs.ConnectionFailed(protocolName, "dial "+addr+": canceled", ctx.Err())
	}
}

func newConn(addr string, sc io.ReadWriteCloser, opts Options) *Conn {
	c := &Conn{
		addr: addr,
		sc:   sc,
		pw:   &packetWriter{w: sc},
		done: make(chan struct{}),
	}
	c.muxer = flv.NewMuxerSize(c.pw, opts.HasVideo, opts.HasAudio, PayloadSize)
	return c
}

// WriteTags tag写入FLV流, 按PayloadSize切包发送
func (c *Conn) WriteTags(tags []flvio.Tag) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return errs.NetworkError(protocolName, "write on closed connection", -1, nil)
	}
	if err := c.muxer.WriteTags(tags); err != nil {
		se := errs.NetworkError(protocolName, "write", -1, err)
		go c.fail(se)
		return se
	}
	return nil
}

func (c *Conn) WriteTag(tag flvio.Tag) error {
	return c.WriteTags([]flvio.Tag{tag})
}

func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.closeConn()
}

func (c *Conn) closeConn() (err error) {
	c.closeOnce.Do(func() {
		err = c.sc.Close()
		close(c.done)
	})
	return
}

func (c *Conn) fail(err error) {
	c.errMu.Lock()
	if c.err == nil && !c.closed.Load() {
		c.err = err
	}
	c.errMu.Unlock()
	c.closeConn()
}

// readLoop 推流端不会收到数据, 读出错即认为连接断开
func (c *Conn) readLoop() {
	defer utils.PanicRecoverWithInfo("srt read loop")
	buf := make([]byte, PayloadSize)
	for {
		if _, err := c.sc.Read(buf); err != nil {
			if !c.closed.Load() {
				log.Warn().Err(err).Str("addr", c.addr).Msg("[srt] read loop exit")
				c.fail(errs.NetworkError(protocolName, "read", -1, err))
			}
			return
		}
	}
}

func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) TxBytes() uint64 {
	return c.pw.written.Load()
}

func (c *Conn) Packets() uint64 {
	return c.pw.packets.Load()
}

func (c *Conn) RTT() time.Duration {
	return c.rtt
}

func (c *Conn) RemoteAddr() string {
	return c.addr
}

// packetWriter 每次Write最多PayloadSize字节
type packetWriter struct {
	w       io.Writer
	written atomic.Uint64
	packets atomic.Uint64
}

func (p *packetWriter) Write(b []byte) (n int, err error) {
	for len(b) > 0 {
		k := len(b)
		if k > PayloadSize {
			k = PayloadSize
		}
		var m int
		m, err = p.w.Write(b[:k])
		n += m
		p.written.Add(uint64(m))
		if err != nil {
			return
		}
		p.packets.Add(1)
		b = b[k:]
	}
	return
}
