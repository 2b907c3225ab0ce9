package flv

import (
	"bufio"
	"io"

	"github.com/pkg/errors"

	"github.com/bugVanisher/avpush/media/container/flv/flvio"
)

// Muxer 把tag写成FLV字节流(文件头 + tag + PreviousTagSize)
type Muxer struct {
	bufw          *bufio.Writer
	b             []byte
	headerWritten bool
	hasVideo      bool
	hasAudio      bool
	written       uint64
}

func NewMuxer(w io.Writer, hasVideo, hasAudio bool) *Muxer {
	return NewMuxerSize(w, hasVideo, hasAudio, 4096)
}

// NewMuxerSize size为写缓存大小
func NewMuxerSize(w io.Writer, hasVideo, hasAudio bool, size int) *Muxer {
	return &Muxer{
		bufw:     bufio.NewWriterSize(w, size),
		b:        make([]byte, flvio.TagHeaderLength+flvio.TagTrailerLength),
		hasVideo: hasVideo,
		hasAudio: hasAudio,
	}
}

// WriteHeader 写9字节文件头和第一个PreviousTagSize(0)
func (self *Muxer) WriteHeader() (err error) {
	if self.headerWritten {
		return
	}
	hdr := flvio.FileHeader(self.hasVideo, self.hasAudio)
	if _, err = self.bufw.Write(hdr); err != nil {
		return errors.Wrap(err, "flv: write file header")
	}
	if _, err = self.bufw.Write([]byte{0, 0, 0, 0}); err != nil {
		return errors.Wrap(err, "flv: write file header")
	}
	self.written += uint64(len(hdr) + 4)
	self.headerWritten = true
	return
}

// WriteTag 没写过文件头时先写文件头
func (self *Muxer) WriteTag(tag flvio.Tag) (err error) {
	if err = self.WriteHeader(); err != nil {
		return
	}
	if err = flvio.WriteTag(self.bufw, tag, self.b); err != nil {
		return errors.Wrap(err, "flv: write tag")
	}
	self.written += uint64(flvio.TagHeaderLength + len(tag.Data) + flvio.TagTrailerLength)
	return
}

// WriteTags 写入后flush
func (self *Muxer) WriteTags(tags []flvio.Tag) (err error) {
	for _, tag := range tags {
		if err = self.WriteTag(tag); err != nil {
			return
		}
	}
	return self.Flush()
}

func (self *Muxer) Flush() error {
	return self.bufw.Flush()
}

// Written 已写入的字节数(含未flush部分)
func (self *Muxer) Written() uint64 {
	return self.written
}
