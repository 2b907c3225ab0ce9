package rtmp

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/media/container/flv/flvio"
	"github.com/bugVanisher/avpush/utils"
)

const protocolName = "rtmp"

const csidData = 4

var errConnClosed = errors.New("rtmp: connection closed")

type conn struct {
	url  *URL
	opts Options

	netconn   net.Conn
	txrxcount *txrxcount
	bufr      *bufio.Reader
	bufw      *bufio.Writer

	// wmu 保护bufw/writebuf以及写chunk的状态
	wmu               sync.Mutex
	writebuf          []byte
	writeMaxChunkSize int

	readbuf          []byte
	readMaxChunkSize int
	readAckSize      uint32
	ackn             uint32
	readcsmap        map[uint32]*chunkStream

	// 非零时所有读写都用这个deadline, 连接建立阶段使用
	deadline time.Time

	avmsgsid uint32

	gotmsg         bool
	gotcommand     bool
	timestamp      uint32
	msgtypeid      uint8
	msgdata        []byte
	commandname    string
	commandtransid float64
	commandobj     flvio.AMFMap
	commandparams  []interface{}
	eventtype      uint16

	rtt     time.Duration
	debuger *Debuger

	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	errMu     sync.Mutex
	err       error
}

type txrxcount struct {
	io.ReadWriter
	txbytes atomic.Uint64
	rxbytes atomic.Uint64
}

func (self *txrxcount) Read(p []byte) (int, error) {
	n, err := self.ReadWriter.Read(p)
	self.rxbytes.Add(uint64(n))
	return n, err
}

func (self *txrxcount) Write(p []byte) (int, error) {
	n, err := self.ReadWriter.Write(p)
	self.txbytes.Add(uint64(n))
	return n, err
}

var _ DialFunc = Dial

// Dial 建立连接并完成握手/connect/createStream/publish, 整个过程受ConnectTimeout和ctx约束
func Dial(ctx context.Context, rawurl string, opt ...Option) (Conn, error) {
	opts := DefaultOptions
	for _, o := range opt {
		o(&opts)
	}
	u, err := ParseURL(rawurl)
	if err != nil {
		return nil, errs.ConfigurationError(errs.KindInvalidParameter, err.Error())
	}
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	var netconn net.Conn
	d := &net.Dialer{}
	if u.TLS() {
		cfg := opts.TLSConfig
		if cfg == nil {
			cfg = &tls.Config{}
		}
		if cfg.ServerName == "" {
			cfg = cfg.Clone()
			cfg.ServerName = u.Host
		}
		netconn, err = (&tls.Dialer{NetDialer: d, Config: cfg}).DialContext(ctx, "tcp", u.Address())
	} else {
		netconn, err = d.DialContext(ctx, "tcp", u.Address())
	}
	if err != nil {
		return nil, dialError(ctx, opts, "dial "+u.Address(), err)
	}
	if tc, ok := netconn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(opts.TCPNoDelay)
	}

	c := newConn(netconn, u, opts)
	if dl, ok := ctx.Deadline(); ok {
		c.deadline = dl
	}
	// ctx取消时让阻塞中的读写立即返回
	stop := context.AfterFunc(ctx, func() {
		_ = netconn.SetDeadline(time.Now())
	})
	defer stop()

	if err = c.handshakeClient(); err != nil {
		c.closeNetConn()
		return nil, dialError(ctx, opts, "handshake", err)
	}
	if err = c.connectPublish(); err != nil {
		c.closeNetConn()
		if se, ok := errs.AsStreamError(err); ok && ctx.Err() == nil {
			return nil, se
		}
		return nil, dialError(ctx, opts, "publish", err)
	}
	if !stop() {
		c.closeNetConn()
		return nil, dialError(ctx, opts, "publish", ctx.Err())
	}
	c.deadline = time.Time{}
	_ = netconn.SetDeadline(time.Time{})

	log.Info().Str("url", utils.MaskURL(rawurl)).Str("remote", c.RemoteAddr()).Dur("rtt", c.rtt).
		Int("chunkSize", c.writeMaxChunkSize).Msg("[rtmp] publish started")
	go c.readLoop()
	return c, nil
}

func dialError(ctx context.Context, opts Options, stage string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return errs.ConnectionFailed(protocolName, stage+": canceled", ctx.Err())
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return errs.TimeoutError(protocolName, stage, opts.ConnectTimeout)
	}
	if se, ok := errs.AsStreamError(err); ok {
		return se
	}
	return errs.ConnectionFailed(protocolName, stage, err)
}

func newConn(netconn net.Conn, u *URL, opts Options) *conn {
	c := &conn{
		url:               u,
		opts:              opts,
		netconn:           netconn,
		readcsmap:         make(map[uint32]*chunkStream),
		readMaxChunkSize:  defaultChunkSize,
		writeMaxChunkSize: defaultChunkSize,
		writebuf:          make([]byte, 256),
		readbuf:           make([]byte, 256),
		done:              make(chan struct{}),
	}
	c.txrxcount = &txrxcount{ReadWriter: netconn}
	c.bufr = bufio.NewReaderSize(c.txrxcount, opts.ReadBufferSize)
	c.bufw = bufio.NewWriterSize(c.txrxcount, opts.WriteBufferSize)

	if opts.DebugFile != "" {
		var err error
		if c.debuger, err = NewDebuger(opts.RoleID, opts.DebugFile); err != nil {
			log.Warn().Err(err).Str("file", opts.DebugFile).Msg("[rtmp] open debug file")
		}
	}
	return c
}

func (self *conn) URL() *URL {
	return self.url
}

func (self *conn) RemoteAddr() string {
	if self.netconn != nil {
		return self.netconn.RemoteAddr().String()
	}
	return ""
}

func (self *conn) ChunkSize() int {
	self.wmu.Lock()
	defer self.wmu.Unlock()
	return self.writeMaxChunkSize
}

func (self *conn) TxBytes() uint64 {
	return self.txrxcount.txbytes.Load()
}

func (self *conn) RxBytes() uint64 {
	return self.txrxcount.rxbytes.Load()
}

func (self *conn) RTT() time.Duration {
	return self.rtt
}

func (self *conn) Done() <-chan struct{} {
	return self.done
}

func (self *conn) Err() error {
	self.errMu.Lock()
	defer self.errMu.Unlock()
	return self.err
}

// Close 尽量发送deleteStream后关闭, 可重复调用
func (self *conn) Close() error {
	if !self.closed.CompareAndSwap(false, true) {
		return nil
	}
	self.wmu.Lock()
	if self.avmsgsid != 0 {
		if err := self.writeCommandMsg(csidCommand, 0, "deleteStream", 0, nil, self.avmsgsid); err == nil {
			_ = self.flushWrite()
		}
	}
	self.wmu.Unlock()
	err := self.closeNetConn()
	log.Debug().Str("remote", self.RemoteAddr()).Uint64("tx", self.TxBytes()).Uint64("rx", self.RxBytes()).Msg("[rtmp] closed")
	return err
}

func (self *conn) closeNetConn() (err error) {
	self.closeOnce.Do(func() {
		err = self.netconn.Close()
		close(self.done)
		self.debuger.Close()
	})
	return
}

func (self *conn) fail(err error) {
	self.errMu.Lock()
	if self.err == nil && !self.closed.Load() {
		self.err = err
	}
	self.errMu.Unlock()
	self.closeNetConn()
}

func (self *conn) readLoop() {
	defer utils.PanicRecoverWithInfo("rtmp read loop")
	for {
		if err := self.pollMsg(); err != nil {
			if !self.closed.Load() {
				log.Warn().Err(err).Str("remote", self.RemoteAddr()).Msg("[rtmp] read loop exit")
				self.fail(errs.NetworkError(protocolName, "read", -1, err))
			}
			return
		}
		if !self.gotcommand {
			continue
		}
		switch self.commandname {
		case "onStatus":
			level, code, desc := self.statusResult()
			log.Info().Str("level", level).Str("code", code).Str("desc", desc).Msg("[rtmp] onStatus")
			if level == "error" {
				self.fail(errs.ProtocolError(protocolName, code+" "+desc, nil))
				return
			}
		case "_error":
			_, code, desc := self.statusResult()
			self.fail(errs.ProtocolError(protocolName, "_error "+code+" "+desc, nil))
			return
		}
	}
}

func (self *conn) pollMsg() (err error) {
	self.gotmsg = false
	self.gotcommand = false
	for {
		if err = self.readChunk(); err != nil {
			return
		}
		if self.gotmsg {
			return
		}
	}
}

func (self *conn) readDeadline() time.Time {
	return self.deadline
}

func (self *conn) writeDeadline() time.Time {
	if !self.deadline.IsZero() {
		return self.deadline
	}
	if self.closed.Load() {
		return time.Now().Add(time.Second)
	}
	return time.Now().Add(self.opts.ReadWriteTimeout)
}

func (self *conn) writeBasicConf() (err error) {
	// > SetChunkSize
	if err = self.writeSetChunkSize(self.opts.ChunkSize); err != nil {
		return
	}
	// > WindowAckSize
	if err = self.writeWindowAckSize(self.opts.WindowAckSize); err != nil {
		return
	}
	// > SetPeerBandwidth
	if err = self.writeSetPeerBandwidth(self.opts.WindowAckSize, 2); err != nil {
		return
	}
	return
}

func (self *conn) statusResult() (level, code, desc string) {
	for _, p := range self.commandparams {
		if obj, ok := p.(flvio.AMFMap); ok {
			return obj.GetString("level"), obj.GetString("code"), obj.GetString("description")
		}
	}
	return
}

func (self *conn) checkConnectResult() error {
	_, code, desc := self.statusResult()
	if self.commandname == "_error" || code != CodeConnectSuccess {
		msg := fmt.Sprintf("connect %s: %s %s", self.url.App, code, desc)
		if code == CodeConnectRejected || self.commandname == "_error" {
			return errs.AuthenticationFailed(protocolName, msg)
		}
		return errs.ProtocolError(protocolName, msg, nil)
	}
	return nil
}

func (self *conn) checkCreateStreamResult() (ok bool, avmsgsid uint32) {
	for _, p := range self.commandparams {
		if f, isNum := p.(float64); isNum {
			return true, uint32(f)
		}
	}
	return
}

func (self *conn) checkPublishResult() error {
	_, code, desc := self.statusResult()
	switch code {
	case CodePublishStart:
		return nil
	case CodePublishStreamDuplicated:
		return errs.ProtocolError(protocolName, "StreamDuplicated", nil)
	case "":
		return errs.ProtocolError(protocolName, "publish result without code", nil)
	}
	return errs.ProtocolError(protocolName, fmt.Sprintf("publish result: %s %s", code, desc), nil)
}

func (self *conn) writeConnect() (err error) {
	if err = self.writeBasicConf(); err != nil {
		return
	}

	// > connect("app")
	log.Debug().Str("app", self.url.App).Str("host", self.url.Host).Msg("[rtmp] > connect")

	obj := flvio.AMFMap{
		{K: "app", V: self.url.App},
		{K: "type", V: "nonprivate"},
		{K: "flashVer", V: self.opts.FlashVer},
		{K: "tcUrl", V: self.url.TcURL()},
		{K: "fpad", V: false},
		{K: "capabilities", V: 15},
		{K: "audioCodecs", V: 4071},
		{K: "videoCodecs", V: 252},
		{K: "videoFunction", V: 1},
	}
	if err = self.writeCommandMsg(csidCommand, 0, "connect", 1, obj); err != nil {
		return
	}
	if err = self.flushWrite(); err != nil {
		return
	}

	for {
		if err = self.pollMsg(); err != nil {
			return
		}
		if self.gotcommand {
			// < _result("NetConnection.Connect.Success")
			if self.commandname == "_result" || self.commandname == "_error" {
				return self.checkConnectResult()
			}
		} else if self.msgtypeid == msgtypeidWindowAckSize {
			if err = self.writeWindowAckSize(0xffffffff); err != nil {
				return
			}
			if err = self.flushWrite(); err != nil {
				return
			}
		}
	}
}

func (self *conn) connectPublish() (err error) {
	if err = self.writeConnect(); err != nil {
		return
	}

	transid := 2

	// > createStream()
	if err = self.writeCommandMsg(csidCommand, 0, "createStream", transid, nil); err != nil {
		return
	}
	if err = self.flushWrite(); err != nil {
		return
	}

	for {
		if err = self.pollMsg(); err != nil {
			return
		}
		if !self.gotcommand {
			continue
		}
		// < _result(avmsgsid) of createStream
		if self.commandname == "_result" && int(self.commandtransid) == transid {
			var ok bool
			if ok, self.avmsgsid = self.checkCreateStreamResult(); !ok {
				return errs.ProtocolError(protocolName, "createStream result without stream id", nil)
			}
			break
		}
		if self.commandname == "_error" {
			return errs.ProtocolError(protocolName, "createStream failed", nil)
		}
	}
	transid++

	// > publish('stream')
	log.Debug().Str("stream", utils.MaskURL("/"+self.url.Stream)).Uint32("msgsid", self.avmsgsid).Msg("[rtmp] > publish")
	if err = self.writeCommandMsg(csidPublish, self.avmsgsid, "publish", transid, nil, self.url.PublishName(), "live"); err != nil {
		return
	}
	if err = self.flushWrite(); err != nil {
		return
	}

	for {
		if err = self.pollMsg(); err != nil {
			return
		}
		// < onStatus() of publish
		if self.gotcommand && self.commandname == "onStatus" {
			return self.checkPublishResult()
		}
	}
}

// WriteTag ...
func (self *conn) WriteTag(tag flvio.Tag) error {
	self.wmu.Lock()
	defer self.wmu.Unlock()
	if err := self.writeAVTag(tag); err != nil {
		return self.writeFailed(err)
	}
	if err := self.flushWrite(); err != nil {
		return self.writeFailed(err)
	}
	return nil
}

func (self *conn) WriteTags(tags []flvio.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	self.wmu.Lock()
	defer self.wmu.Unlock()
	for _, tag := range tags {
		if err := self.writeAVTag(tag); err != nil {
			return self.writeFailed(err)
		}
	}
	if err := self.flushWrite(); err != nil {
		return self.writeFailed(err)
	}
	return nil
}

func (self *conn) writeFailed(err error) error {
	if self.closed.Load() {
		return errs.NetworkError(protocolName, "write on closed connection", -1, errConnClosed)
	}
	if prev := self.Err(); prev != nil {
		return prev
	}
	if se, ok := errs.AsStreamError(err); ok && se.Kind == errs.KindProtocolError {
		return se
	}
	se := errs.From(err)
	if se.Kind != errs.KindTimeout {
		se = errs.NetworkError(protocolName, "write", -1, err)
	}
	se.Protocol = protocolName
	go self.fail(se)
	return se
}

func (self *conn) tmpwbuf(n int) []byte {
	if len(self.writebuf) < n {
		self.writebuf = make([]byte, n)
	}
	return self.writebuf
}

func (self *conn) writeSetChunkSize(size int) (err error) {
	if size <= 0 {
		size = defaultChunkSize
	}
	if size > maxChunkSize {
		size = maxChunkSize
	}
	b := self.tmpwbuf(4)
	binary.BigEndian.PutUint32(b, uint32(size))
	if err = self.writeMessage(csidControl, 0, msgtypeidSetChunkSize, 0, b[:4]); err != nil {
		return errors.Wrap(err, "writeSetChunkSize")
	}
	self.writeMaxChunkSize = size
	self.debug("send SetChunkSize chunksize=%d", size)
	return
}

func (self *conn) writeAck(seqnum uint32) (err error) {
	b := self.tmpwbuf(4)
	binary.BigEndian.PutUint32(b, seqnum)
	if err = self.writeMessage(csidControl, 0, msgtypeidAck, 0, b[:4]); err != nil {
		return errors.Wrap(err, "writeAck")
	}
	self.debug("send ack seqnum=%d", seqnum)
	return
}

func (self *conn) writeWindowAckSize(size uint32) (err error) {
	b := self.tmpwbuf(4)
	binary.BigEndian.PutUint32(b, size)
	if err = self.writeMessage(csidControl, 0, msgtypeidWindowAckSize, 0, b[:4]); err != nil {
		return errors.Wrap(err, "writeWindowAckSize")
	}
	self.debug("send WindowAckSize acksize=%d", size)
	return
}

func (self *conn) writeSetPeerBandwidth(acksize uint32, limittype uint8) (err error) {
	b := self.tmpwbuf(5)
	binary.BigEndian.PutUint32(b, acksize)
	b[4] = limittype
	if err = self.writeMessage(csidControl, 0, msgtypeidSetPeerBandwidth, 0, b[:5]); err != nil {
		return errors.Wrap(err, "writeSetPeerBandwidth")
	}
	self.debug("send SetPeerBandwidth acksize=%d limittype=%d", acksize, limittype)
	return
}

func (self *conn) writePingResponse(ts uint32) (err error) {
	b := self.tmpwbuf(6)
	binary.BigEndian.PutUint16(b, eventtypePingResponse)
	binary.BigEndian.PutUint32(b[2:], ts)
	return self.writeMessage(csidControl, 0, msgtypeidUserControl, 0, b[:6])
}

func (self *conn) writeCommandMsg(csid, msgsid uint32, args ...interface{}) (err error) {
	b, err := flvio.MarshalAMF0(args...)
	if err != nil {
		return errors.Wrapf(err, "writeCommandMsg: csid=%d msgsid=%d", csid, msgsid)
	}
	if err = self.writeMessage(csid, 0, msgtypeidCommandMsgAMF0, msgsid, b); err != nil {
		return errors.Wrapf(err, "writeCommandMsg: csid=%d msgsid=%d", csid, msgsid)
	}
	self.debug("send command csid=%d msgsid=%d args=%+v", csid, msgsid, args)
	return
}

var setDataFrame = flvio.EncodeAMF0("@setDataFrame")

func (self *conn) writeAVTag(tag flvio.Tag) (err error) {
	switch tag.Type {
	case flvio.TAG_AUDIO:
		err = self.writeMessage(csidAudio, tag.Timestamp, msgtypeidAudioMsg, self.avmsgsid, tag.Data)
	case flvio.TAG_VIDEO:
		err = self.writeMessage(csidVideo, tag.Timestamp, msgtypeidVideoMsg, self.avmsgsid, tag.Data)
	case flvio.TAG_SCRIPTDATA:
		err = self.writeMessage(csidData, tag.Timestamp, msgtypeidDataMsgAMF0, self.avmsgsid, setDataFrame, tag.Data)
	default:
		return errs.ProtocolError(protocolName, fmt.Sprintf("unknown tag type %d", tag.Type), nil)
	}
	if err != nil {
		self.debug("send tag error type=%d ts=%d len=%d %s", tag.Type, tag.Timestamp, len(tag.Data), err.Error())
		return
	}
	self.debug("send tag type=%d ts=%d len=%d", tag.Type, tag.Timestamp, len(tag.Data))
	return
}

// writeMessage 按writeMaxChunkSize切分成一个fmt0 chunk和若干fmt3 chunk
func (self *conn) writeMessage(csid uint32, timestamp uint32, msgtypeid uint8, msgsid uint32, payload ...[]byte) (err error) {
	size := 0
	for _, p := range payload {
		size += len(p)
	}
	if size > maxChunkSize {
		return errors.Errorf("rtmp: message too large: %d", size)
	}

	var hdr [chunkHeaderLength + extTimestampLen]byte
	n := fillChunkHeader(hdr[:], csid, timestamp, msgtypeid, msgsid, size)

	var cont [1 + extTimestampLen]byte
	cn := fillChunkHeader3(cont[:], csid, timestamp)

	_ = self.netconn.SetWriteDeadline(self.writeDeadline())
	if _, err = self.bufw.Write(hdr[:n]); err != nil {
		return
	}
	inChunk := 0
	for _, p := range payload {
		for len(p) > 0 {
			if inChunk == self.writeMaxChunkSize {
				if _, err = self.bufw.Write(cont[:cn]); err != nil {
					return
				}
				inChunk = 0
			}
			k := self.writeMaxChunkSize - inChunk
			if k > len(p) {
				k = len(p)
			}
			if _, err = self.bufw.Write(p[:k]); err != nil {
				return
			}
			p = p[k:]
			inChunk += k
		}
	}
	return
}

func fillChunkHeader(b []byte, csid uint32, timestamp uint32, msgtypeid uint8, msgsid uint32, msgdatalen int) (n int) {
	//  0                   1                   2                   3
	//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	// |                   timestamp                   |message length |
	// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	// |     message length (cont)     |message type id| msg stream id |
	// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	// |           message stream id (cont)            |
	// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	//
	//       Figure 9 Chunk Message Header – Type 0

	b[n] = byte(csid) & 0x3f
	n++
	if timestamp < timestampMax {
		putU24BE(b[n:], timestamp)
	} else {
		putU24BE(b[n:], timestampMax)
	}
	n += 3
	putU24BE(b[n:], uint32(msgdatalen))
	n += 3
	b[n] = msgtypeid
	n++
	binary.LittleEndian.PutUint32(b[n:], msgsid)
	n += 4
	if timestamp >= timestampMax {
		binary.BigEndian.PutUint32(b[n:], timestamp)
		n += extTimestampLen
	}
	return
}

// fillChunkHeader3 同一消息后续chunk的头, 扩展时间戳需要重复
func fillChunkHeader3(b []byte, csid uint32, timestamp uint32) (n int) {
	b[n] = 0xC0 | byte(csid)&0x3f
	n++
	if timestamp >= timestampMax {
		binary.BigEndian.PutUint32(b[n:], timestamp)
		n += extTimestampLen
	}
	return
}

func putU24BE(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func u24BE(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func (self *conn) flushWrite() (err error) {
	_ = self.netconn.SetWriteDeadline(self.writeDeadline())
	if err = self.bufw.Flush(); err != nil {
		return errors.Wrap(err, "rtmp: flushWrite")
	}
	return
}

// debug 写入debug信息
func (self *conn) debug(format string, args ...interface{}) {
	if !self.debuger.Enabled() {
		return
	}
	self.debuger.Debug(format, args...)
}
