package flv

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/bugVanisher/avpush/media/codec/h264parser"
)

// HEVCConfig HEVCDecoderConfigurationRecord中需要从SPS取出的字段
type HEVCConfig struct {
	ProfileSpace              uint8
	TierFlag                  uint8
	ProfileIdc                uint8
	ProfileCompatibilityFlags uint32
	ConstraintIndicatorFlags  uint64 // 低48位
	LevelIdc                  uint8
	MinSpatialSegmentationIdc uint16
	ParallelismType           uint8
	ChromaFormatIdc           uint8
	BitDepthLumaMinus8        uint8
	BitDepthChromaMinus8      uint8
	AvgFrameRate              uint16
	ConstantFrameRate         uint8
	NumTemporalLayers         uint8
	TemporalIdNested          bool
	LengthSizeMinusOne        uint8
	Width, Height             int
}

// DefaultHEVCConfig SPS解析失败时使用的默认值, Main profile level 4
func DefaultHEVCConfig() HEVCConfig {
	return HEVCConfig{
		ProfileIdc:         1,
		LevelIdc:           120,
		ChromaFormatIdc:    1,
		NumTemporalLayers:  1,
		TemporalIdNested:   true,
		LengthSizeMinusOne: 3,
	}
}

type bitReader struct {
	data   []byte
	off    int
	bitoff uint
}

// readBits 数据读完后补0
func (self *bitReader) readBits(n int) (v uint64) {
	for i := 0; i < n; i++ {
		v <<= 1
		if self.off >= len(self.data) {
			continue
		}
		v |= uint64(self.data[self.off]>>(7-self.bitoff)) & 1
		self.bitoff++
		if self.bitoff == 8 {
			self.bitoff = 0
			self.off++
		}
	}
	return
}

func (self *bitReader) readBit() uint64 {
	return self.readBits(1)
}

func (self *bitReader) readUE() uint64 {
	zeros := 0
	for self.readBit() == 0 {
		zeros++
		if zeros >= 32 {
			return 0
		}
	}
	if zeros == 0 {
		return 0
	}
	return (1<<uint(zeros) - 1) + self.readBits(zeros)
}

var errHEVCSPSInvalid = errors.New("flv: hevc sps invalid")

// ParseHEVCSPS 从SPS nal(含2字节nal头)中解析profile/tier/level等信息
func ParseHEVCSPS(sps []byte) (cfg HEVCConfig, err error) {
	cfg = DefaultHEVCConfig()
	if len(sps) <= 2 {
		err = errHEVCSPSInvalid
		return
	}
	rbsp := h264parser.RemoveH264orH265EmulationBytes(sps[2:])
	if len(rbsp) == 0 {
		err = errHEVCSPSInvalid
		return
	}
	r := &bitReader{data: rbsp}

	r.readBits(4) // sps_video_parameter_set_id
	maxSubLayersMinus1 := int(r.readBits(3))
	nested := r.readBit() == 1

	// profile_tier_level
	cfg.ProfileSpace = uint8(r.readBits(2))
	cfg.TierFlag = uint8(r.readBit())
	cfg.ProfileIdc = uint8(r.readBits(5))
	cfg.ProfileCompatibilityFlags = uint32(r.readBits(32))
	cfg.ConstraintIndicatorFlags = r.readBits(48)
	cfg.LevelIdc = uint8(r.readBits(8))

	profilePresent := make([]bool, maxSubLayersMinus1)
	levelPresent := make([]bool, maxSubLayersMinus1)
	for i := 0; i < maxSubLayersMinus1; i++ {
		profilePresent[i] = r.readBit() == 1
		levelPresent[i] = r.readBit() == 1
	}
	if maxSubLayersMinus1 > 0 {
		for i := maxSubLayersMinus1; i < 8; i++ {
			r.readBits(2)
		}
	}
	for i := 0; i < maxSubLayersMinus1; i++ {
		if profilePresent[i] {
			r.readBits(8)
			r.readBits(32)
			r.readBits(48)
		}
		if levelPresent[i] {
			r.readBits(8)
		}
	}

	r.readUE() // sps_seq_parameter_set_id
	chroma := r.readUE()
	if chroma == 3 {
		r.readBit() // separate_colour_plane_flag
	}
	cfg.Width = int(r.readUE())
	cfg.Height = int(r.readUE())
	if r.readBit() == 1 {
		r.readUE()
		r.readUE()
		r.readUE()
		r.readUE()
	}
	bitDepthLuma := r.readUE()
	bitDepthChroma := r.readUE()

	cfg.ChromaFormatIdc = uint8(clamp(chroma, 0, 3))
	cfg.BitDepthLumaMinus8 = uint8(clamp(bitDepthLuma, 0, 7))
	cfg.BitDepthChromaMinus8 = uint8(clamp(bitDepthChroma, 0, 7))
	cfg.NumTemporalLayers = uint8(maxSubLayersMinus1 + 1)
	cfg.TemporalIdNested = nested
	return
}

func clamp(v, lo, hi uint64) uint64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// HEVCDecoderConfigurationRecord 生成 hvcC, sps解析失败时退回默认值
func HEVCDecoderConfigurationRecord(vps, sps, pps []byte) ([]byte, error) {
	if len(vps) == 0 || len(sps) == 0 || len(pps) == 0 {
		return nil, errors.New("flv: hevc record needs vps, sps and pps")
	}
	for _, ps := range [][]byte{vps, sps, pps} {
		if len(ps) > 0xFFFF {
			return nil, errors.Errorf("flv: hevc parameter set too large len=%d", len(ps))
		}
	}
	cfg, err := ParseHEVCSPS(sps)
	if err != nil {
		cfg = DefaultHEVCConfig()
	}

	b := make([]byte, 38+len(vps)+len(sps)+len(pps))
	n := 0
	b[n] = 0x01
	n++
	b[n] = (cfg.ProfileSpace&0x03)<<6 | (cfg.TierFlag&0x01)<<5 | cfg.ProfileIdc&0x1F
	n++
	binary.BigEndian.PutUint32(b[n:], cfg.ProfileCompatibilityFlags)
	n += 4
	for shift := 40; shift >= 0; shift -= 8 {
		b[n] = byte(cfg.ConstraintIndicatorFlags >> uint(shift))
		n++
	}
	b[n] = cfg.LevelIdc
	n++

	minSeg := cfg.MinSpatialSegmentationIdc & 0x0FFF
	b[n] = 0xF0 | byte(minSeg>>8)
	b[n+1] = byte(minSeg)
	n += 2

	b[n] = 0xFC | cfg.ParallelismType&0x03
	b[n+1] = 0xFC | cfg.ChromaFormatIdc&0x03
	b[n+2] = 0xF8 | cfg.BitDepthLumaMinus8&0x07
	b[n+3] = 0xF8 | cfg.BitDepthChromaMinus8&0x07
	n += 4

	binary.BigEndian.PutUint16(b[n:], cfg.AvgFrameRate)
	n += 2

	layers := cfg.NumTemporalLayers
	if layers < 1 {
		layers = 1
	}
	if layers > 8 {
		layers = 8
	}
	var nested uint8
	if cfg.TemporalIdNested {
		nested = 1
	}
	b[n] = (cfg.ConstantFrameRate&0x03)<<6 | ((layers-1)&0x07)<<3 | nested<<2 | cfg.LengthSizeMinusOne&0x03
	n++

	b[n] = 0x03
	n++
	n += putNalArray(b[n:], h264parser.HEVC_NALU_VPS, vps)
	n += putNalArray(b[n:], h264parser.HEVC_NALU_SPS, sps)
	putNalArray(b[n:], h264parser.HEVC_NALU_PPS, pps)
	return b, nil
}

func putNalArray(b []byte, naltype uint8, data []byte) int {
	b[0] = 0x80 | naltype&0x3F
	binary.BigEndian.PutUint16(b[1:], 1)
	binary.BigEndian.PutUint16(b[3:], uint16(len(data)))
	copy(b[5:], data)
	return 5 + len(data)
}
