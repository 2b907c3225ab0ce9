package rtmp

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/avpush/media/container/flv/flvio"
)

type chunkStream struct {
	timenow     uint32
	timedelta   uint32
	hastimeext  bool
	msgsid      uint32
	msgtypeid   uint8
	msgdatalen  uint32
	msgdataleft uint32
	msghdrtype  uint8
	msgdata     []byte
}

func (self *chunkStream) Start() {
	self.msgdataleft = self.msgdatalen
	self.msgdata = make([]byte, self.msgdatalen)
}

func (self *conn) readFull(b []byte) (err error) {
	_ = self.netconn.SetReadDeadline(self.readDeadline())
	_, err = io.ReadFull(self.bufr, b)
	return
}

func (self *conn) readExtTimestamp(b []byte) (ts uint32, err error) {
	if err = self.readFull(b[:extTimestampLen]); err != nil {
		return
	}
	return binary.BigEndian.Uint32(b), nil
}

func (self *conn) readChunk() (err error) {
	b := self.readbuf
	n := 0
	if err = self.readFull(b[:1]); err != nil {
		err = fmt.Errorf("read rtmp chunk header first byte: %w", err)
		self.debug("recv error %s", err.Error())
		return
	}
	header := b[0]
	n += 1

	msghdrtype := header >> 6
	csid := uint32(header) & 0x3f
	switch csid {
	default: // Chunk basic header 1
	case 0: // Chunk basic header 2
		if err = self.readFull(b[:1]); err != nil {
			err = fmt.Errorf("read rtmp chunk header headertype=%d csid=0: %w", msghdrtype, err)
			return
		}
		n += 1
		csid = uint32(b[0]) + 64
	case 1: // Chunk basic header 3, little endian
		if err = self.readFull(b[:2]); err != nil {
			err = fmt.Errorf("read rtmp chunk header headertype=%d csid=1: %w", msghdrtype, err)
			return
		}
		n += 2
		csid = uint32(binary.LittleEndian.Uint16(b)) + 64
	}

	cs := self.readcsmap[csid]
	if cs == nil {
		cs = &chunkStream{}
		self.readcsmap[csid] = cs
	}

	var timestamp uint32

	switch msghdrtype {
	case 0:
		// 11 bytes: timestamp(3) length(3) typeid(1) msgsid(4, LE)
		if cs.msgdataleft != 0 {
			err = fmt.Errorf("headertype=%d csid=%d msgdataleft=%d chunk invalid", msghdrtype, csid, cs.msgdataleft)
			return
		}
		h := b[:11]
		if err = self.readFull(h); err != nil {
			err = fmt.Errorf("headertype=%d csid=%d read header: %w", msghdrtype, csid, err)
			return
		}
		n += len(h)
		timestamp = u24BE(h[0:3])
		cs.msghdrtype = msghdrtype
		cs.msgdatalen = u24BE(h[3:6])
		cs.msgtypeid = h[6]
		cs.msgsid = binary.LittleEndian.Uint32(h[7:11])
		if timestamp == timestampMax {
			if timestamp, err = self.readExtTimestamp(b); err != nil {
				return
			}
			n += extTimestampLen
			cs.hastimeext = true
		} else {
			cs.hastimeext = false
		}
		cs.timenow = timestamp
		cs.Start()

	case 1:
		// 7 bytes: timestamp delta(3) length(3) typeid(1)
		if cs.msgdataleft != 0 {
			err = fmt.Errorf("headertype=%d csid=%d msgdataleft=%d chunk invalid", msghdrtype, csid, cs.msgdataleft)
			return
		}
		h := b[:7]
		if err = self.readFull(h); err != nil {
			err = fmt.Errorf("headertype=%d csid=%d read header: %w", msghdrtype, csid, err)
			return
		}
		n += len(h)
		timestamp = u24BE(h[0:3])
		cs.msghdrtype = msghdrtype
		cs.msgdatalen = u24BE(h[3:6])
		cs.msgtypeid = h[6]
		if timestamp == timestampMax {
			if timestamp, err = self.readExtTimestamp(b); err != nil {
				return
			}
			n += extTimestampLen
			cs.hastimeext = true
		} else {
			cs.hastimeext = false
		}
		cs.timedelta = timestamp
		cs.timenow += timestamp
		cs.Start()

	case 2:
		// 3 bytes: timestamp delta
		if cs.msgdataleft != 0 {
			err = fmt.Errorf("headertype=%d csid=%d msgdataleft=%d chunk invalid", msghdrtype, csid, cs.msgdataleft)
			return
		}
		h := b[:3]
		if err = self.readFull(h); err != nil {
			err = fmt.Errorf("headertype=%d csid=%d read header: %w", msghdrtype, csid, err)
			return
		}
		n += len(h)
		cs.msghdrtype = msghdrtype
		timestamp = u24BE(h[0:3])
		if timestamp == timestampMax {
			if timestamp, err = self.readExtTimestamp(b); err != nil {
				return
			}
			n += extTimestampLen
			cs.hastimeext = true
		} else {
			cs.hastimeext = false
		}
		cs.timedelta = timestamp
		cs.timenow += timestamp
		cs.Start()

	case 3:
		if cs.msgdataleft == 0 {
			switch cs.msghdrtype {
			case 0:
				if cs.hastimeext {
					if timestamp, err = self.readExtTimestamp(b); err != nil {
						return
					}
					n += extTimestampLen
					cs.timenow = timestamp
				}
			case 1, 2:
				if cs.hastimeext {
					if timestamp, err = self.readExtTimestamp(b); err != nil {
						return
					}
					n += extTimestampLen
				} else {
					timestamp = cs.timedelta
				}
				cs.timenow += timestamp
			}
			cs.Start()
		} else if cs.hastimeext {
			// 有的服务端在续传chunk里不重复扩展时间戳
			var tbs []byte
			if tbs, err = self.bufr.Peek(extTimestampLen); err != nil {
				err = fmt.Errorf("headertype=%d csid=%d peek ext timestamp: %w", msghdrtype, csid, err)
				return
			}
			if tmpts := binary.BigEndian.Uint32(tbs); tmpts > 0 && tmpts == cs.timenow {
				_, _ = self.bufr.Discard(extTimestampLen)
				n += extTimestampLen
			}
		}
	}

	size := int(cs.msgdataleft)
	if size > self.readMaxChunkSize {
		size = self.readMaxChunkSize
	}
	off := cs.msgdatalen - cs.msgdataleft
	buf := cs.msgdata[off : int(off)+size]
	if err = self.readFull(buf); err != nil {
		err = fmt.Errorf("read rtmp chunk data size=%d offset=%d: %w", size, off, err)
		self.debug("recv error csid=%d msgtypeid=%d %s", csid, cs.msgtypeid, err.Error())
		return
	}
	n += len(buf)
	cs.msgdataleft -= uint32(size)

	self.debug("recv chunk headertype=%d csid=%d ts=%d msglen=%d msgtypeid=%d msgsid=%d chunksize=%d offset=%d",
		msghdrtype, csid, cs.timenow, cs.msgdatalen, cs.msgtypeid, cs.msgsid, size, off)

	if cs.msgdataleft == 0 {
		if err = self.handleMsg(cs.timenow, cs.msgsid, cs.msgtypeid, cs.msgdata); err != nil {
			return
		}
	}

	self.ackn += uint32(n)
	if self.readAckSize != 0 && self.ackn > self.readAckSize {
		self.wmu.Lock()
		err = self.writeAck(uint32(self.RxBytes()))
		if err == nil {
			err = self.flushWrite()
		}
		self.wmu.Unlock()
		if err != nil {
			return fmt.Errorf("write ack: %w", err)
		}
		self.ackn = 0
	}
	return
}

func (self *conn) handleCommandMsgAMF0(b []byte) (n int, err error) {
	var name, transid, obj interface{}
	var size int

	if name, size, err = flvio.ParseAMF0Val(b[n:]); err != nil {
		return 0, fmt.Errorf("handleCommandMsgAMF0: get name: %w", err)
	}
	n += size
	if transid, size, err = flvio.ParseAMF0Val(b[n:]); err != nil {
		return 0, fmt.Errorf("handleCommandMsgAMF0: get transid: %w", err)
	}
	n += size

	var ok bool
	if self.commandname, ok = name.(string); !ok {
		return 0, fmt.Errorf("rtmp: CommandMsgAMF0 command is not string")
	}
	self.commandtransid, _ = transid.(float64)
	self.commandobj = nil
	self.commandparams = self.commandparams[:0]

	if n < len(b) {
		if obj, size, err = flvio.ParseAMF0Val(b[n:]); err != nil {
			return 0, fmt.Errorf("handleCommandMsgAMF0: get obj: %w", err)
		}
		n += size
		self.commandobj, _ = obj.(flvio.AMFMap)
	}
	for n < len(b) {
		if obj, size, err = flvio.ParseAMF0Val(b[n:]); err != nil {
			return 0, fmt.Errorf("handleCommandMsgAMF0: get commandparams: %w", err)
		}
		n += size
		self.commandparams = append(self.commandparams, obj)
	}

	self.gotcommand = true
	return
}

func (self *conn) handleMsg(timestamp uint32, msgsid uint32, msgtypeid uint8, msgdata []byte) (err error) {
	self.msgdata = msgdata
	self.msgtypeid = msgtypeid
	self.timestamp = timestamp

	switch msgtypeid {
	case msgtypeidCommandMsgAMF0:
		if _, err = self.handleCommandMsgAMF0(msgdata); err != nil {
			return
		}

	case msgtypeidCommandMsgAMF3:
		if len(msgdata) < 1 {
			return fmt.Errorf("rtmp: short packet of CommandMsgAMF3")
		}
		// skip first byte
		if _, err = self.handleCommandMsgAMF0(msgdata[1:]); err != nil {
			return
		}

	case msgtypeidUserControl:
		if len(msgdata) < 2 {
			return fmt.Errorf("rtmp: short packet of UserControl")
		}
		self.eventtype = binary.BigEndian.Uint16(msgdata)
		if self.eventtype == eventtypePingRequest && len(msgdata) >= 6 {
			self.wmu.Lock()
			err = self.writePingResponse(binary.BigEndian.Uint32(msgdata[2:]))
			if err == nil {
				err = self.flushWrite()
			}
			self.wmu.Unlock()
			if err != nil {
				return
			}
		}

	case msgtypeidSetChunkSize:
		if len(msgdata) < 4 {
			return fmt.Errorf("rtmp: short packet of SetChunkSize")
		}
		size := int(binary.BigEndian.Uint32(msgdata) & 0x7fffffff)
		if size <= 0 {
			return fmt.Errorf("rtmp: invalid SetChunkSize %d", size)
		}
		self.readMaxChunkSize = size
		log.Debug().Int("chunksize", size).Msg("[rtmp] peer SetChunkSize")

	case msgtypeidWindowAckSize:
		if len(msgdata) < 4 {
			return fmt.Errorf("rtmp: short packet of WindowAckSize")
		}
		self.readAckSize = binary.BigEndian.Uint32(msgdata)

	case msgtypeidAck, msgtypeidSetPeerBandwidth, msgtypeidAbort:

	default:
		log.Debug().Uint8("msgtypeid", msgtypeid).Uint32("msgsid", msgsid).Uint32("timestamp", timestamp).Msg("[rtmp] handleMsg: unhandled msg")
	}

	self.gotmsg = true
	return
}
