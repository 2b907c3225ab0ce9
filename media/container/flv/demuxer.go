package flv

import (
	"bufio"
	"io"

	"github.com/pkg/errors"

	"github.com/bugVanisher/avpush/media/av"
	"github.com/bugVanisher/avpush/media/container/flv/flvio"
)

// Demuxer 顺序读取FLV文件中的tag
type Demuxer struct {
	bufr      *bufio.Reader
	b         []byte
	flags     uint8
	gotHeader bool
}

func NewDemuxer(r io.Reader) *Demuxer {
	return &Demuxer{
		bufr: bufio.NewReaderSize(r, 64*1024),
		b:    make([]byte, flvio.TagHeaderLength),
	}
}

func (self *Demuxer) readHeader() (err error) {
	b := make([]byte, flvio.FileHeaderLength)
	if _, err = io.ReadFull(self.bufr, b); err != nil {
		return errors.Wrap(err, "flv: read file header")
	}
	var skip int
	if self.flags, skip, err = flvio.ParseFileHeader(b); err != nil {
		return
	}
	// 扩展头 + PreviousTagSize0
	if _, err = self.bufr.Discard(skip + flvio.TagTrailerLength); err != nil {
		return errors.Wrap(err, "flv: skip file header")
	}
	self.gotHeader = true
	return
}

// HasVideo 需先读到文件头
func (self *Demuxer) HasVideo() bool {
	return self.flags&flvio.FILE_HAS_VIDEO != 0
}

func (self *Demuxer) HasAudio() bool {
	return self.flags&flvio.FILE_HAS_AUDIO != 0
}

// Prepare 读取文件头
func (self *Demuxer) Prepare() error {
	if self.gotHeader {
		return nil
	}
	return self.readHeader()
}

// ReadTag 文件结束返回io.EOF
func (self *Demuxer) ReadTag() (tag flvio.Tag, err error) {
	if err = self.Prepare(); err != nil {
		return
	}
	return flvio.ReadTag(self.bufr, self.b)
}

// VideoTag 解析后的视频tag
type VideoTag struct {
	FrameType  uint8
	Codec      av.VideoCodec
	PacketType uint8
	Data       []byte
}

// ParseVideoTag 只支持AVC/HEVC
func ParseVideoTag(data []byte) (tag VideoTag, err error) {
	if len(data) < VideoTagHeaderLength {
		err = errors.Errorf("flv: video tag too short len=%d", len(data))
		return
	}
	tag.FrameType = data[0] >> 4
	switch data[0] & 0x0F {
	case VIDEO_AVC:
		tag.Codec = av.H264
	case VIDEO_HEVC:
		tag.Codec = av.H265
	default:
		err = errors.Errorf("flv: video codec id=%d not supported", data[0]&0x0F)
		return
	}
	tag.PacketType = data[1]
	tag.Data = data[VideoTagHeaderLength:]
	return
}

// AudioTag 解析后的音频tag
type AudioTag struct {
	SoundFormat uint8
	SampleSize  int
	PacketType  uint8
	Data        []byte
}

// ParseAudioTag 只支持AAC
func ParseAudioTag(data []byte) (tag AudioTag, err error) {
	if len(data) < AudioTagHeaderLength {
		err = errors.Errorf("flv: audio tag too short len=%d", len(data))
		return
	}
	tag.SoundFormat = data[0] >> 4
	if tag.SoundFormat != SOUND_AAC {
		err = errors.Errorf("flv: sound format=%d not supported", tag.SoundFormat)
		return
	}
	tag.SampleSize = 16
	if data[0]&0x02 == 0 {
		tag.SampleSize = 8
	}
	tag.PacketType = data[1]
	tag.Data = data[AudioTagHeaderLength:]
	return
}

// ParseAudioSpecificConfig 返回采样率和声道数
func ParseAudioSpecificConfig(asc []byte) (sampleRate, channels int, err error) {
	if len(asc) < 2 {
		err = errors.New("flv: audio specific config too short")
		return
	}
	idx := int(asc[0]&0x07)<<1 | int(asc[1]>>7)
	if idx >= len(sampleRates) {
		err = errors.Errorf("flv: sample rate index=%d not supported", idx)
		return
	}
	sampleRate = sampleRates[idx]
	channels = int(asc[1]>>3) & 0x0F
	return
}

var sampleRates = []int{96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050, 16000, 12000, 11025, 8000, 7350}
