package flvio

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

const (
	TAG_AUDIO      = 8
	TAG_VIDEO      = 9
	TAG_SCRIPTDATA = 18
)

const (
	FILE_HAS_AUDIO = 0x4
	FILE_HAS_VIDEO = 0x1
)

const (
	FileHeaderLength = 9
	TagHeaderLength  = 11
	// TagTrailerLength PreviousTagSize
	TagTrailerLength = 4
	// MaxTagDataSize tag size字段只有24bit
	MaxTagDataSize = 0xFFFFFF
)

// Tag 一个FLV tag, Timestamp单位ms
type Tag struct {
	Type      uint8
	Timestamp uint32
	Data      []byte
}

func (self Tag) String() string {
	return fmt.Sprintf("tag type=%d ts=%d len=%d", self.Type, self.Timestamp, len(self.Data))
}

// FillFileHeader 写入9字节文件头
func FillFileHeader(b []byte, flags uint8) (n int) {
	// 'FLV', version 1
	b[0] = 'F'
	b[1] = 'L'
	b[2] = 'V'
	b[3] = 1
	b[4] = flags
	binary.BigEndian.PutUint32(b[5:], FileHeaderLength)
	return FileHeaderLength
}

// FileHeader 生成文件头
func FileHeader(hasVideo, hasAudio bool) []byte {
	var flags uint8
	if hasVideo {
		flags |= FILE_HAS_VIDEO
	}
	if hasAudio {
		flags |= FILE_HAS_AUDIO
	}
	b := make([]byte, FileHeaderLength)
	FillFileHeader(b, flags)
	return b
}

// ParseFileHeader 返回flags和跳过的字节数
func ParseFileHeader(b []byte) (flags uint8, skip int, err error) {
	if len(b) < FileHeaderLength || b[0] != 'F' || b[1] != 'L' || b[2] != 'V' {
		err = errors.Errorf("flvio: file header invalid")
		return
	}
	flags = b[4]
	skip = int(binary.BigEndian.Uint32(b[5:9])) - FileHeaderLength
	if skip < 0 {
		err = errors.Errorf("flvio: file header offset invalid")
	}
	return
}

// FillTagHeader 写入11字节tag头. 时间戳低24位在前, 高8位放在扩展字节
func FillTagHeader(b []byte, tagtype uint8, datalen int, ts uint32) (n int) {
	binary.BigEndian.PutUint32(b[0:], uint32(datalen)&0xFFFFFF|uint32(tagtype)<<24)
	binary.BigEndian.PutUint32(b[4:], ts<<8|(ts>>24)&0xFF)
	b[8] = 0
	b[9] = 0
	b[10] = 0
	return TagHeaderLength
}

// ParseTagHeader 解析11字节tag头
func ParseTagHeader(b []byte) (tagtype uint8, datalen int, ts uint32, err error) {
	if len(b) < TagHeaderLength {
		err = errors.Errorf("flvio: tag header too short")
		return
	}
	tagtype = b[0]
	switch tagtype {
	case TAG_AUDIO, TAG_VIDEO, TAG_SCRIPTDATA:
	default:
		err = errors.Errorf("flvio: tag type=%d invalid", tagtype)
		return
	}
	datalen = int(binary.BigEndian.Uint32(b[0:]) & 0xFFFFFF)
	raw := binary.BigEndian.Uint32(b[4:])
	ts = raw>>8 | (raw&0xFF)<<24
	return
}

// WriteTag 写入 tag头 + data + PreviousTagSize
func WriteTag(w io.Writer, tag Tag, buf []byte) (err error) {
	if len(tag.Data) > MaxTagDataSize {
		return errors.Errorf("flvio: tag data too large len=%d", len(tag.Data))
	}
	if len(buf) < TagHeaderLength+TagTrailerLength {
		buf = make([]byte, TagHeaderLength+TagTrailerLength)
	}
	n := FillTagHeader(buf, tag.Type, len(tag.Data), tag.Timestamp)
	if _, err = w.Write(buf[:n]); err != nil {
		return
	}
	if _, err = w.Write(tag.Data); err != nil {
		return
	}
	binary.BigEndian.PutUint32(buf[n:], uint32(n+len(tag.Data)))
	_, err = w.Write(buf[n : n+TagTrailerLength])
	return
}

// ReadTag 读取一个tag(含PreviousTagSize)
func ReadTag(r io.Reader, buf []byte) (tag Tag, err error) {
	if len(buf) < TagHeaderLength {
		buf = make([]byte, TagHeaderLength)
	}
	if _, err = io.ReadFull(r, buf[:TagHeaderLength]); err != nil {
		return
	}
	var datalen int
	if tag.Type, datalen, tag.Timestamp, err = ParseTagHeader(buf); err != nil {
		return
	}
	tag.Data = make([]byte, datalen)
	if _, err = io.ReadFull(r, tag.Data); err != nil {
		return
	}
	if _, err = io.ReadFull(r, buf[:TagTrailerLength]); err != nil {
		return
	}
	return
}
