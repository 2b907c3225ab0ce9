package rtmp

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/media/container/flv/flvio"
)

type serverMsg struct {
	typeid  uint8
	ts      uint32
	msgsid  uint32
	data    []byte
	command string
	params  []interface{}
}

type fakeServer struct {
	ln         net.Listener
	publishRsp string
	silent     bool
	closeAfter bool
	msgs       chan serverMsg
	conns      chan net.Conn
}

func startServer(t *testing.T, publishRsp string) *fakeServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	s := &fakeServer{ln: ln, publishRsp: publishRsp, msgs: make(chan serverMsg, 1024), conns: make(chan net.Conn, 4)}
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeServer) url(path string) string {
	return "rtmp://" + s.ln.Addr().String() + path
}

func (s *fakeServer) serve(t *testing.T) {
	go func() {
		nc, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.conns <- nc
		if s.silent {
			return
		}
		srv := newConn(nc, &URL{}, DefaultOptions)
		srv.deadline = time.Now().Add(5 * time.Second)
		if err := serverHandshake(srv); err != nil {
			t.Logf("server handshake: %v", err)
			return
		}
		for {
			if err := srv.pollMsg(); err != nil {
				return
			}
			msg := serverMsg{typeid: srv.msgtypeid, ts: srv.timestamp, data: srv.msgdata}
			if srv.gotcommand {
				msg.command = srv.commandname
				msg.params = append([]interface{}(nil), srv.commandparams...)
				if err := s.reply(srv); err != nil {
					return
				}
			}
			s.msgs <- msg
		}
	}()
}

func serverHandshake(srv *conn) error {
	c0c1 := make([]byte, 1+handshakeSize)
	if _, err := io.ReadFull(srv.bufr, c0c1); err != nil {
		return err
	}
	s0s1s2 := make([]byte, 1+handshakeSize*2)
	s0s1s2[0] = rtmpVersion
	binary.BigEndian.PutUint32(s0s1s2[1+4:], 0x0d0e0a0d)
	copy(s0s1s2[1+handshakeSize:], c0c1[1:])
	if _, err := srv.bufw.Write(s0s1s2); err != nil {
		return err
	}
	if err := srv.bufw.Flush(); err != nil {
		return err
	}
	c2 := make([]byte, handshakeSize)
	_, err := io.ReadFull(srv.bufr, c2)
	if err == nil && !bytes.Equal(c2, s0s1s2[1:1+handshakeSize]) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (s *fakeServer) reply(srv *conn) (err error) {
	switch srv.commandname {
	case "connect":
		err = srv.writeCommandMsg(csidCommand, 0, "_result", srv.commandtransid,
			flvio.AMFMap{{K: "fmsVer", V: "FMS/3,0,1,123"}, {K: "capabilities", V: 31}},
			flvio.AMFMap{
				{K: "level", V: "status"},
				{K: "code", V: CodeConnectSuccess},
				{K: "description", V: "Connection succeeded."},
				{K: "objectEncoding", V: 0},
			})
	case "createStream":
		err = srv.writeCommandMsg(csidCommand, 0, "_result", srv.commandtransid, nil, 1)
	case "publish":
		err = srv.writeCommandMsg(5, 1, "onStatus", 0, nil, flvio.AMFMap{
			{K: "level", V: "status"},
			{K: "code", V: s.publishRsp},
			{K: "description", V: "publishing"},
		})
	default:
		return nil
	}
	if err == nil {
		err = srv.flushWrite()
	}
	if s.closeAfter && srv.commandname == "publish" {
		go func() {
			time.Sleep(50 * time.Millisecond)
			srv.netconn.Close()
		}()
	}
	return
}

func (s *fakeServer) next(t *testing.T, typeid uint8) serverMsg {
	for {
		select {
		case msg := <-s.msgs:
			if msg.typeid == typeid {
				return msg
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("no message of type %d", typeid)
		}
	}
}

func TestChunkHeader(t *testing.T) {
	b := make([]byte, chunkHeaderLength+extTimestampLen)
	n := fillChunkHeader(b, csidVideo, 0x123456, msgtypeidVideoMsg, 1, 300)
	require.Equal(t, chunkHeaderLength, n)
	require.Equal(t, []byte{0x07, 0x12, 0x34, 0x56, 0x00, 0x01, 0x2C, 0x09, 0x01, 0x00, 0x00, 0x00}, b[:n])

	n = fillChunkHeader(b, csidAudio, 0x01020304, msgtypeidAudioMsg, 1, 4)
	require.Equal(t, chunkHeaderLength+extTimestampLen, n)
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF}, b[1:4])
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, b[12:16])

	c := make([]byte, 5)
	require.Equal(t, 1, fillChunkHeader3(c, csidVideo, 100))
	require.Equal(t, byte(0xC7), c[0])
	require.Equal(t, 5, fillChunkHeader3(c, csidVideo, 0xFFFFFF))
}

func TestPublish(t *testing.T) {
	s := startServer(t, CodePublishStart)
	s.serve(t)

	c, err := Dial(context.Background(), s.url("/live/key?token=1"), WithChunkSize(1000))
	require.Nil(t, err)
	require.Equal(t, 1000, c.ChunkSize())
	require.True(t, c.RTT() > 0)

	connect := s.next(t, msgtypeidCommandMsgAMF0)
	require.Equal(t, "connect", connect.command)
	create := s.next(t, msgtypeidCommandMsgAMF0)
	require.Equal(t, "createStream", create.command)
	publish := s.next(t, msgtypeidCommandMsgAMF0)
	require.Equal(t, "publish", publish.command)
	require.Equal(t, []interface{}{"key?token=1", "live"}, publish.params)

	video := make([]byte, 5000)
	for i := range video {
		video[i] = byte(i)
	}
	require.Nil(t, c.WriteTags([]flvio.Tag{
		{Type: flvio.TAG_SCRIPTDATA, Data: flvio.EncodeAMF0("onMetaData", flvio.AMFECMAArray{{K: "width", V: 720}})},
		{Type: flvio.TAG_VIDEO, Timestamp: 40, Data: video},
	}))
	require.Nil(t, c.WriteTag(flvio.Tag{Type: flvio.TAG_AUDIO, Timestamp: 0x1000000, Data: bytes.Repeat([]byte{0xAF}, 2500)}))

	meta := s.next(t, msgtypeidDataMsgAMF0)
	vals, err := flvio.ParseAMF0Vals(meta.data)
	require.Nil(t, err)
	require.Equal(t, "@setDataFrame", vals[0])
	require.Equal(t, "onMetaData", vals[1])

	v := s.next(t, msgtypeidVideoMsg)
	require.Equal(t, uint32(40), v.ts)
	require.Equal(t, video, v.data)

	a := s.next(t, msgtypeidAudioMsg)
	require.Equal(t, uint32(0x1000000), a.ts)
	require.Equal(t, 2500, len(a.data))

	require.NotNil(t, c.WriteTag(flvio.Tag{Type: 7}))
	require.True(t, c.TxBytes() > 7500)
	require.True(t, c.RxBytes() > 3000)

	require.Nil(t, c.Close())
	require.Nil(t, c.Close())
	<-c.Done()
	require.Nil(t, c.Err())
	require.NotNil(t, c.WriteTag(flvio.Tag{Type: flvio.TAG_AUDIO, Data: []byte{0xAF, 0x01}}))
}

func TestPublishRejected(t *testing.T) {
	s := startServer(t, CodePublishBadName)
	s.serve(t)

	_, err := Dial(context.Background(), s.url("/live/key"))
	require.NotNil(t, err)
	se, ok := errs.AsStreamError(err)
	require.True(t, ok)
	require.Equal(t, errs.KindProtocolError, se.Kind)
	require.False(t, se.Recoverable)

	s = startServer(t, CodePublishStreamDuplicated)
	s.serve(t)
	_, err = Dial(context.Background(), s.url("/live/key"))
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "StreamDuplicated")
}

func TestConnectTimeout(t *testing.T) {
	s := startServer(t, CodePublishStart)
	s.silent = true
	s.serve(t)

	start := time.Now()
	_, err := Dial(context.Background(), s.url("/live/key"), WithConnectTimeout(200*time.Millisecond))
	require.NotNil(t, err)
	require.True(t, time.Since(start) < 2*time.Second)
	se, ok := errs.AsStreamError(err)
	require.True(t, ok)
	require.Equal(t, errs.KindTimeout, se.Kind)
	require.True(t, se.Recoverable)
}

func TestConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(context.Background(), "rtmp://"+addr+"/live/key", WithConnectTimeout(time.Second))
	require.NotNil(t, err)
	require.True(t, errs.IsRecoverable(err))

	_, err = Dial(context.Background(), "http://"+addr+"/live/key")
	require.NotNil(t, err)
	require.False(t, errs.IsRecoverable(err))
}

func TestServerDisconnect(t *testing.T) {
	s := startServer(t, CodePublishStart)
	s.closeAfter = true
	s.serve(t)

	c, err := Dial(context.Background(), s.url("/live/key"))
	require.Nil(t, err)
	select {
	case <-c.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("connection not closed")
	}
	require.NotNil(t, c.Err())
	require.True(t, errs.IsRecoverable(c.Err()))
	require.NotNil(t, c.WriteTag(flvio.Tag{Type: flvio.TAG_AUDIO, Data: []byte{0xAF, 0x01}}))
}
