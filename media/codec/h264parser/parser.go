package h264parser

import (
	"encoding/binary"
	"fmt"
)

const (
	NALU_NONIDR = 1
	NALU_IDR    = 5
	NALU_SEI    = 6
	NALU_SPS    = 7
	NALU_PPS    = 8
	NALU_AUD    = 9
)

// H.265 nal unit types
const (
	HEVC_NALU_IDR_W_RADL = 19
	HEVC_NALU_IDR_N_LP   = 20
	HEVC_NALU_CRA        = 21
	HEVC_NALU_VPS        = 32
	HEVC_NALU_SPS        = 33
	HEVC_NALU_PPS        = 34
	HEVC_NALU_AUD        = 35
)

func IsDataNALU(b []byte) bool {
	typ := b[0] & 0x1f
	return typ >= 1 && typ <= 5
}

func IsSpsNALU(b byte) bool {
	return b&0x1f == NALU_SPS
}

func IsPpsNALU(b byte) bool {
	return b&0x1f == NALU_PPS
}

func IsSeiNALU(b byte) bool {
	return b&0x1f == NALU_SEI
}

func IsIDRNALU(b byte) bool {
	return b&0x1f == NALU_IDR
}

// HEVCNaluType 取 H.265 nal header 中的类型
func HEVCNaluType(b byte) int {
	return int(b>>1) & 0x3f
}

// IsHEVCKeyNALU IRAP 帧(BLA/IDR/CRA)
func IsHEVCKeyNALU(b byte) bool {
	typ := HEVCNaluType(b)
	return typ >= 16 && typ <= 23
}

const (
	NALU_RAW = iota
	NALU_AVCC
	NALU_ANNEXB
)

func CheckNALUsType(b []byte) (typ int) {
	_, typ = SplitNALUs(b)
	return
}

// SplitNALUs 拆分一帧中的nal, 自动识别AVCC(4字节长度前缀)和Annex-B(起始码)格式
func SplitNALUs(b []byte) (nalus [][]byte, typ int) {
	if len(b) < 4 {
		return [][]byte{b}, NALU_RAW
	}

	val3 := u24BE(b)
	val4 := binary.BigEndian.Uint32(b)

	// maybe AVCC
	if val4 <= uint32(len(b)) {
		_val4 := val4
		_b := b[4:]
		avcc := [][]byte{}
		for {
			if _val4 > uint32(len(_b)) {
				break
			}
			avcc = append(avcc, _b[:_val4])
			_b = _b[_val4:]
			if len(_b) < 4 {
				break
			}
			_val4 = binary.BigEndian.Uint32(_b)
			_b = _b[4:]
			if _val4 > uint32(len(_b)) {
				break
			}
		}
		if len(_b) == 0 {
			return avcc, NALU_AVCC
		}
	}

	// is Annex B
	if val3 == 1 || val4 == 1 {
		_val3 := val3
		_val4 := val4
		start := 0
		pos := 0
		for {
			if start != pos {
				nalus = append(nalus, b[start:pos])
			}
			if _val3 == 1 {
				pos += 3
			} else if _val4 == 1 {
				pos += 4
			}
			start = pos
			if start >= len(b) {
				break
			}
			_val3 = 0
			_val4 = 0
			for pos < len(b) {
				if pos+2 < len(b) && b[pos] == 0 {
					_val3 = u24BE(b[pos:])
					if _val3 == 0 {
						if pos+3 < len(b) {
							_val4 = uint32(b[pos+3])
							if _val4 == 1 {
								break
							}
						}
					} else if _val3 == 1 {
						break
					}
					pos++
				} else {
					pos++
				}
			}
		}
		typ = NALU_ANNEXB
		return
	}

	return [][]byte{b}, NALU_RAW
}

// JoinAVCC 把nal列表转成4字节长度前缀的AVCC格式
func JoinAVCC(nalus [][]byte) []byte {
	n := 0
	for _, nalu := range nalus {
		n += 4 + len(nalu)
	}
	b := make([]byte, n)
	off := 0
	for _, nalu := range nalus {
		binary.BigEndian.PutUint32(b[off:], uint32(len(nalu)))
		off += 4
		off += copy(b[off:], nalu)
	}
	return b
}

// RemoveH264orH265EmulationBytes 去除防竞争码0x000003
func RemoveH264orH265EmulationBytes(b []byte) []byte {
	j := 0
	r := make([]byte, len(b))
	for i := 0; (i < len(b)) && (j < len(b)); {
		if i+2 < len(b) &&
			b[i] == 0 && b[i+1] == 0 && b[i+2] == 3 {
			r[j] = 0
			r[j+1] = 0
			j = j + 2
			i = i + 3
		} else {
			r[j] = b[i]
			j = j + 1
			i = i + 1
		}
	}
	return r[:j]
}

type AVCDecoderConfRecord struct {
	AVCProfileIndication uint8
	ProfileCompatibility uint8
	AVCLevelIndication   uint8
	LengthSizeMinusOne   uint8
	SPS                  [][]byte
	PPS                  [][]byte
}

var ErrDecconfInvalid = fmt.Errorf("h264parser: AVCDecoderConfRecord invalid")

func (self *AVCDecoderConfRecord) Unmarshal(b []byte) (n int, err error) {
	if len(b) < 7 {
		err = ErrDecconfInvalid
		return
	}

	self.AVCProfileIndication = b[1]
	self.ProfileCompatibility = b[2]
	self.AVCLevelIndication = b[3]
	self.LengthSizeMinusOne = b[4] & 0x03
	spscount := int(b[5] & 0x1f)
	n += 6

	for i := 0; i < spscount; i++ {
		var sps []byte
		if sps, n, err = readU16Chunk(b, n); err != nil {
			return
		}
		self.SPS = append(self.SPS, sps)
	}

	if len(b) < n+1 {
		err = ErrDecconfInvalid
		return
	}
	ppscount := int(b[n])
	n++

	for i := 0; i < ppscount; i++ {
		var pps []byte
		if pps, n, err = readU16Chunk(b, n); err != nil {
			return
		}
		self.PPS = append(self.PPS, pps)
	}

	return
}

// HEVCDecoderConfRecord 只解析参数集数组, 用于从FLV序列头中取出 VPS/SPS/PPS
type HEVCDecoderConfRecord struct {
	VPS [][]byte
	SPS [][]byte
	PPS [][]byte
}

var ErrHEVCDecconfInvalid = fmt.Errorf("h264parser: HEVCDecoderConfRecord invalid")

func (self *HEVCDecoderConfRecord) Unmarshal(b []byte) (n int, err error) {
	if len(b) < 23 {
		err = ErrHEVCDecconfInvalid
		return
	}
	arrays := int(b[22])
	n = 23
	for i := 0; i < arrays; i++ {
		if len(b) < n+3 {
			err = ErrHEVCDecconfInvalid
			return
		}
		typ := int(b[n] & 0x3f)
		count := int(binary.BigEndian.Uint16(b[n+1:]))
		n += 3
		for j := 0; j < count; j++ {
			var nalu []byte
			if nalu, n, err = readU16Chunk(b, n); err != nil {
				err = ErrHEVCDecconfInvalid
				return
			}
			switch typ {
			case HEVC_NALU_VPS:
				self.VPS = append(self.VPS, nalu)
			case HEVC_NALU_SPS:
				self.SPS = append(self.SPS, nalu)
			case HEVC_NALU_PPS:
				self.PPS = append(self.PPS, nalu)
			}
		}
	}
	return
}

func readU16Chunk(b []byte, n int) (chunk []byte, next int, err error) {
	if len(b) < n+2 {
		return nil, n, ErrDecconfInvalid
	}
	size := int(binary.BigEndian.Uint16(b[n:]))
	n += 2
	if len(b) < n+size {
		return nil, n, ErrDecconfInvalid
	}
	return b[n : n+size], n + size, nil
}

func u24BE(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
