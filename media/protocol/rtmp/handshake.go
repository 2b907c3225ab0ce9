package rtmp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
)

const rtmpVersion = 3

// handshakeClient 简单握手: C0C1 -> S0S1S2 -> C2(回显S1)
func (self *conn) handshakeClient() error {
	var random [(1 + handshakeSize*2) * 2]byte

	C0C1C2 := random[:handshakeSize*2+1]
	C0 := C0C1C2[:1]
	C1 := C0C1C2[1 : handshakeSize+1]
	C0C1 := C0C1C2[:handshakeSize+1]

	S0S1S2 := random[handshakeSize*2+1:]
	S0 := S0S1S2[:1]
	S1 := S0S1S2[1 : handshakeSize+1]

	C0[0] = rtmpVersion
	// time(4) + zero(4) + random
	_, _ = rand.Read(C1[8:])

	self.debug("localaddr=%s remoteaddr=%s", self.netconn.LocalAddr().String(), self.netconn.RemoteAddr().String())
	// > C0C1
	start := time.Now()
	_ = self.netconn.SetWriteDeadline(self.writeDeadline())
	if _, err := self.bufw.Write(C0C1); err != nil {
		return errors.Wrap(err, "rtmp HandshakeClient")
	}
	if err := self.bufw.Flush(); err != nil {
		return errors.Wrap(err, "rtmp HandshakeClient")
	}

	// < S0S1S2
	_ = self.netconn.SetReadDeadline(self.readDeadline())
	if _, err := io.ReadFull(self.bufr, S0S1S2[:1]); err != nil {
		return errors.Wrap(err, "rtmp HandshakeClient")
	}
	self.rtt = time.Since(start)
	if S0[0] != rtmpVersion {
		return fmt.Errorf("rtmp: handshake server version=%d invalid", S0[0])
	}
	if _, err := io.ReadFull(self.bufr, S0S1S2[1:]); err != nil {
		return errors.Wrap(err, "rtmp HandshakeClient")
	}
	self.debug("recv handshake S0S1S2 server version %d", binary.BigEndian.Uint32(S1[4:8]))

	// > C2
	_ = self.netconn.SetWriteDeadline(self.writeDeadline())
	if _, err := self.bufw.Write(S1); err != nil {
		return errors.Wrap(err, "rtmp HandshakeClient")
	}
	return nil
}
