package flv

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/bugVanisher/avpush/media/av"
	"github.com/bugVanisher/avpush/media/codec/h264parser"
	"github.com/bugVanisher/avpush/media/container/flv/flvio"
	"github.com/bugVanisher/avpush/utils"
)

const (
	FRAME_KEY   = 1
	FRAME_INTER = 2

	VIDEO_AVC  = 7
	VIDEO_HEVC = 12

	PACKET_SEQHDR = 0
	PACKET_NALU   = 1
	PACKET_EOS    = 2

	SOUND_AAC = 10

	AAC_SEQHDR = 0
	AAC_RAW    = 1

	SOUND_RATE_44KHZ = 3
	SOUND_STEREO     = 1
)

const (
	VideoTagHeaderLength = 5
	AudioTagHeaderLength = 2
	// SampleRateUnsupported 不在标准表里的采样率
	SampleRateUnsupported = 15
)

// VideoCodecID 编码类型对应的FLV codec id
func VideoCodecID(codec av.VideoCodec) uint8 {
	if codec == av.H265 {
		return VIDEO_HEVC
	}
	return VIDEO_AVC
}

// FillVideoTagHeader 5字节: frameType|codec, packetType, 3字节cts(恒为0)
func FillVideoTagHeader(b []byte, frameType, codecID, packetType uint8) int {
	b[0] = (frameType&0x0F)<<4 | codecID&0x0F
	b[1] = packetType
	b[2] = 0
	b[3] = 0
	b[4] = 0
	return VideoTagHeaderLength
}

// FillAudioTagHeader AAC固定写44kHz和stereo标记, 与实际声道无关
func FillAudioTagHeader(b []byte, sampleSize int, seqHeader bool) int {
	var sizeFlag uint8 = 1
	if sampleSize == 8 {
		sizeFlag = 0
	}
	b[0] = SOUND_AAC<<4 | SOUND_RATE_44KHZ<<2 | sizeFlag<<1 | SOUND_STEREO
	if seqHeader {
		b[1] = AAC_SEQHDR
	} else {
		b[1] = AAC_RAW
	}
	return AudioTagHeaderLength
}

// SampleRateIndex MPEG-4 采样率索引, 不支持的返回15
func SampleRateIndex(sampleRate int) int {
	switch sampleRate {
	case 96000:
		return 0
	case 88200:
		return 1
	case 64000:
		return 2
	case 48000:
		return 3
	case 44100:
		return 4
	case 32000:
		return 5
	case 24000:
		return 6
	case 22050:
		return 7
	case 16000:
		return 8
	case 12000:
		return 9
	case 11025:
		return 10
	case 8000:
		return 11
	case 7350:
		return 12
	}
	return SampleRateUnsupported
}

// AudioSpecificConfig AAC-LC 2字节ASC
func AudioSpecificConfig(sampleRate, channels int) []byte {
	idx := SampleRateIndex(sampleRate)
	return []byte{
		byte(0x10 | (idx>>1)&0x07),
		byte((idx&0x01)<<7 | (channels&0x0F)<<3),
	}
}

// AVCDecoderConfigurationRecord avcC, profile/compat/level取自SPS
func AVCDecoderConfigurationRecord(sps, pps []byte) ([]byte, error) {
	if len(sps) < 4 {
		return nil, errors.Errorf("flv: sps too short len=%d", len(sps))
	}
	if len(pps) == 0 {
		return nil, errors.New("flv: pps empty")
	}
	if len(sps) > 0xFFFF || len(pps) > 0xFFFF {
		return nil, errors.New("flv: parameter set too large")
	}
	b := make([]byte, 11+len(sps)+len(pps))
	b[0] = 0x01
	b[1] = sps[1]
	b[2] = sps[2]
	b[3] = sps[3]
	b[4] = 0xFF
	b[5] = 0xE1
	binary.BigEndian.PutUint16(b[6:], uint16(len(sps)))
	n := 8
	n += copy(b[n:], sps)
	b[n] = 0x01
	n++
	binary.BigEndian.PutUint16(b[n:], uint16(len(pps)))
	n += 2
	copy(b[n:], pps)
	return b, nil
}

// MetaData onMetaData script tag的内容
func MetaData(hasVideo, hasAudio bool, video av.VideoConfig, audio av.AudioConfig) []byte {
	meta := flvio.AMFECMAArray{}
	if hasVideo {
		meta.Set("width", video.Width)
		meta.Set("height", video.Height)
		meta.Set("framerate", video.FPS)
		meta.Set("videocodecid", VideoCodecID(video.Codec))
	}
	if hasAudio {
		meta.Set("audiosamplerate", audio.SampleRate)
		meta.Set("audiosamplesize", audio.SampleSize)
		meta.Set("stereo", audio.Stereo())
		meta.Set("audiocodecid", SOUND_AAC)
	}
	return flvio.EncodeAMF0("onMetaData", meta)
}

// VideoSequenceHeader H264需要[SPS, PPS], H265需要[VPS, SPS, PPS]
func VideoSequenceHeader(codec av.VideoCodec, params [][]byte) ([]byte, error) {
	var record []byte
	var err error
	switch codec {
	case av.H265:
		if len(params) < 3 {
			return nil, errors.New("flv: hevc sequence header needs vps, sps and pps")
		}
		record, err = HEVCDecoderConfigurationRecord(params[0], params[1], params[2])
	default:
		if len(params) < 2 {
			return nil, errors.New("flv: avc sequence header needs sps and pps")
		}
		record, err = AVCDecoderConfigurationRecord(params[0], params[1])
	}
	if err != nil {
		return nil, err
	}
	b := make([]byte, VideoTagHeaderLength+len(record))
	n := FillVideoTagHeader(b, FRAME_KEY, VideoCodecID(codec), PACKET_SEQHDR)
	copy(b[n:], record)
	return b, nil
}

// VideoData 长度前缀的NALU数据
func VideoData(codec av.VideoCodec, keyFrame bool, nalus []byte) []byte {
	var frameType uint8 = FRAME_INTER
	if keyFrame {
		frameType = FRAME_KEY
	}
	b := make([]byte, VideoTagHeaderLength+len(nalus))
	n := FillVideoTagHeader(b, frameType, VideoCodecID(codec), PACKET_NALU)
	copy(b[n:], nalus)
	return b
}

// AudioData seqHeader为true时raw为AudioSpecificConfig
func AudioData(sampleSize int, seqHeader bool, raw []byte) []byte {
	b := make([]byte, AudioTagHeaderLength+len(raw))
	n := FillAudioTagHeader(b, sampleSize, seqHeader)
	copy(b[n:], raw)
	return b
}

// Packer 把编码帧打包成FLV tag.
//
// 视频在序列头写出之前、以及第一个关键帧之前的帧都会被丢弃; 有视频时音频要等到
// 序列头和第一个关键帧都写出之后才发送. 非并发安全, 由调用者加锁.
type Packer struct {
	hasVideo bool
	hasAudio bool
	video    av.VideoConfig
	audio    av.AudioConfig
	asc      []byte
	params   [][]byte

	metaWritten     bool
	headerWritten   bool
	keyFrameWritten bool

	dropped uint64
}

func NewPacker(hasVideo, hasAudio bool) *Packer {
	return &Packer{
		hasVideo: hasVideo,
		hasAudio: hasAudio,
		video:    av.DefaultVideoConfig(),
		audio:    av.DefaultAudioConfig(),
	}
}

// SetVideoConfig ...
func (self *Packer) SetVideoConfig(cfg av.VideoConfig) {
	if cfg.Codec != self.video.Codec {
		self.params = nil
		self.headerWritten = false
		self.keyFrameWritten = false
	}
	self.video = cfg
}

// SetAudioConfig asc为空时按采样率和声道数生成
func (self *Packer) SetAudioConfig(cfg av.AudioConfig, asc []byte) error {
	if len(asc) == 0 && SampleRateIndex(cfg.SampleRate) == SampleRateUnsupported {
		return errors.Errorf("flv: unsupported audio sample rate %d", cfg.SampleRate)
	}
	self.audio = cfg
	self.asc = asc
	return nil
}

// SetParameterSets 编码器输出格式变化时调用, 参数集变化后重新写序列头并等待关键帧
func (self *Packer) SetParameterSets(params [][]byte) {
	if sameParams(self.params, params) {
		return
	}
	self.params = params
	self.headerWritten = false
	self.keyFrameWritten = false
}

// Reset 新连接建立后重新发送metadata和序列头
func (self *Packer) Reset() {
	self.metaWritten = false
	self.headerWritten = false
	self.keyFrameWritten = false
}

// Dropped 被门控丢弃的帧数
func (self *Packer) Dropped() uint64 {
	return self.dropped
}

// HeaderWritten ...
func (self *Packer) HeaderWritten() bool {
	return self.headerWritten
}

func (self *Packer) ready() bool {
	if !self.hasVideo {
		return true
	}
	return len(self.params) >= self.requiredParams()
}

func (self *Packer) requiredParams() int {
	if self.video.Codec == av.H265 {
		return 3
	}
	return 2
}

func (self *Packer) writeHeaders(ts uint32) (tags []flvio.Tag, err error) {
	if !self.metaWritten {
		tags = append(tags, flvio.Tag{
			Type: flvio.TAG_SCRIPTDATA,
			Data: MetaData(self.hasVideo, self.hasAudio, self.video, self.audio),
		})
	}
	if self.hasVideo {
		var seq []byte
		if seq, err = VideoSequenceHeader(self.video.Codec, self.params); err != nil {
			return nil, err
		}
		tags = append(tags, flvio.Tag{Type: flvio.TAG_VIDEO, Timestamp: ts, Data: seq})
	}
	if self.hasAudio {
		asc := self.asc
		if len(asc) == 0 {
			asc = AudioSpecificConfig(self.audio.SampleRate, self.audio.ChannelCount)
		}
		tags = append(tags, flvio.Tag{Type: flvio.TAG_AUDIO, Timestamp: ts, Data: AudioData(self.audio.SampleSize, true, asc)})
	}
	self.metaWritten = true
	self.headerWritten = true
	if !self.hasVideo {
		self.keyFrameWritten = true
	}
	return
}

// PackVideo 返回的tag可能为空(被丢弃), 也可能带上metadata和序列头
func (self *Packer) PackVideo(frame av.Frame) (tags []flvio.Tag, err error) {
	if !self.hasVideo {
		return nil, errors.New("flv: packer has no video")
	}
	ts := utils.TimeToTs(frame.Timestamp)

	nalus, typ := h264parser.SplitNALUs(frame.Data)
	var params [][]byte
	var data [][]byte
	key := frame.KeyFrame
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		switch self.classify(nalu[0]) {
		case naluParam:
			params = append(params, nalu)
		case naluKey:
			key = true
			data = append(data, nalu)
		case naluSkip:
		default:
			data = append(data, nalu)
		}
	}
	if len(params) >= self.requiredParams() {
		if ordered := self.orderParams(params); ordered != nil {
			self.SetParameterSets(ordered)
		}
	}

	if !self.headerWritten {
		if !self.ready() {
			self.dropped++
			return nil, nil
		}
		if tags, err = self.writeHeaders(ts); err != nil {
			return nil, err
		}
	}

	if key {
		self.keyFrameWritten = true
	}
	if !self.keyFrameWritten || len(data) == 0 {
		if len(data) > 0 {
			self.dropped++
		}
		return tags, nil
	}

	payload := frame.Data
	if typ != h264parser.NALU_AVCC || len(data) != len(nalus) {
		payload = h264parser.JoinAVCC(data)
	}
	tags = append(tags, flvio.Tag{
		Type:      flvio.TAG_VIDEO,
		Timestamp: ts,
		Data:      VideoData(self.video.Codec, key, payload),
	})
	return tags, nil
}

// PackAudio 纯音频流第一个音频帧之前写metadata和AAC序列头
func (self *Packer) PackAudio(frame av.Frame) (tags []flvio.Tag, err error) {
	if !self.hasAudio {
		return nil, errors.New("flv: packer has no audio")
	}
	ts := utils.TimeToTs(frame.Timestamp)
	if !self.hasVideo && !self.headerWritten {
		if tags, err = self.writeHeaders(ts); err != nil {
			return nil, err
		}
	}
	if !self.headerWritten || !self.keyFrameWritten {
		self.dropped++
		return nil, nil
	}
	tags = append(tags, flvio.Tag{
		Type:      flvio.TAG_AUDIO,
		Timestamp: ts,
		Data:      AudioData(self.audio.SampleSize, false, frame.Data),
	})
	return tags, nil
}

const (
	naluData = iota
	naluKey
	naluParam
	naluSkip
)

func (self *Packer) classify(b byte) int {
	if self.video.Codec == av.H265 {
		switch typ := h264parser.HEVCNaluType(b); {
		case typ == h264parser.HEVC_NALU_VPS || typ == h264parser.HEVC_NALU_SPS || typ == h264parser.HEVC_NALU_PPS:
			return naluParam
		case typ == h264parser.HEVC_NALU_AUD:
			return naluSkip
		case h264parser.IsHEVCKeyNALU(b):
			return naluKey
		}
		return naluData
	}
	switch {
	case h264parser.IsSpsNALU(b), h264parser.IsPpsNALU(b):
		return naluParam
	case b&0x1f == h264parser.NALU_AUD:
		return naluSkip
	case h264parser.IsIDRNALU(b):
		return naluKey
	}
	return naluData
}

// orderParams 按 [VPS,] SPS, PPS 排序, 每种只取第一个
func (self *Packer) orderParams(params [][]byte) [][]byte {
	var vps, sps, pps []byte
	for _, p := range params {
		if self.video.Codec == av.H265 {
			switch h264parser.HEVCNaluType(p[0]) {
			case h264parser.HEVC_NALU_VPS:
				vps = first(vps, p)
			case h264parser.HEVC_NALU_SPS:
				sps = first(sps, p)
			case h264parser.HEVC_NALU_PPS:
				pps = first(pps, p)
			}
			continue
		}
		if h264parser.IsSpsNALU(p[0]) {
			sps = first(sps, p)
		} else {
			pps = first(pps, p)
		}
	}
	var out [][]byte
	if self.video.Codec == av.H265 {
		if vps == nil {
			return nil
		}
		out = append(out, vps)
	}
	if sps == nil || pps == nil {
		return nil
	}
	return append(out, sps, pps)
}

func first(cur, p []byte) []byte {
	if cur != nil {
		return cur
	}
	return p
}

func sameParams(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
