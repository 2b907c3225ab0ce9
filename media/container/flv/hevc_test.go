package flv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bugVanisher/avpush/media/av"
	"github.com/bugVanisher/avpush/media/codec/h264parser"
)

// 1280x720 Main profile level 3.1
var (
	testHEVCVPS = []byte{0x40, 0x01, 0x0c, 0x01, 0xff, 0xff, 0x01, 0x60, 0x00, 0x00, 0x03, 0x00, 0x90}
	testHEVCSPS = []byte{
		0x42, 0x01, 0x01, 0x01, 0x60, 0x00, 0x00, 0x03, 0x00, 0x90, 0x00, 0x00, 0x03, 0x00, 0x00, 0x03,
		0x00, 0x5d, 0xa0, 0x02, 0x80, 0x80, 0x2d, 0x16, 0x59, 0x59, 0xa4, 0x93, 0x2b, 0x9a,
	}
	testHEVCPPS = []byte{0x44, 0x01, 0xc1, 0x72, 0xb4, 0x62, 0x40}
)

func TestParseHEVCSPS(t *testing.T) {
	cfg, err := ParseHEVCSPS(testHEVCSPS)
	require.Nil(t, err)
	require.Equal(t, uint8(1), cfg.ProfileIdc)
	require.Equal(t, uint8(0), cfg.TierFlag)
	require.Equal(t, uint32(0x60000000), cfg.ProfileCompatibilityFlags)
	require.Equal(t, uint64(0x900000000000), cfg.ConstraintIndicatorFlags)
	require.Equal(t, uint8(93), cfg.LevelIdc)
	require.Equal(t, uint8(1), cfg.ChromaFormatIdc)
	require.Equal(t, 1280, cfg.Width)
	require.Equal(t, 720, cfg.Height)
	require.Equal(t, uint8(1), cfg.NumTemporalLayers)
	require.True(t, cfg.TemporalIdNested)

	_, err = ParseHEVCSPS([]byte{0x42, 0x01})
	require.NotNil(t, err)
}

func TestHEVCDecoderConfigurationRecord(t *testing.T) {
	b, err := HEVCDecoderConfigurationRecord(testHEVCVPS, testHEVCSPS, testHEVCPPS)
	require.Nil(t, err)
	require.Equal(t, 38+len(testHEVCVPS)+len(testHEVCSPS)+len(testHEVCPPS), len(b))

	require.Equal(t, byte(0x01), b[0])
	require.Equal(t, byte(0x01), b[1])
	require.Equal(t, []byte{0x60, 0, 0, 0}, b[2:6])
	require.Equal(t, []byte{0x90, 0, 0, 0, 0, 0}, b[6:12])
	require.Equal(t, byte(0x5d), b[12])
	require.Equal(t, []byte{0xF0, 0x00, 0xFC, 0xFD, 0xF8, 0xF8, 0x00, 0x00}, b[13:21])
	require.Equal(t, byte(0x07), b[21])
	require.Equal(t, byte(0x03), b[22])
	require.Equal(t, byte(0x80|32), b[23])

	var conf h264parser.HEVCDecoderConfRecord
	_, err = conf.Unmarshal(b)
	require.Nil(t, err)
	require.Equal(t, [][]byte{testHEVCVPS}, conf.VPS)
	require.Equal(t, [][]byte{testHEVCSPS}, conf.SPS)
	require.Equal(t, [][]byte{testHEVCPPS}, conf.PPS)
}

func TestHEVCRecordFallsBackToDefaults(t *testing.T) {
	b, err := HEVCDecoderConfigurationRecord([]byte{0x40, 0x01}, []byte{0x42, 0x01}, []byte{0x44, 0x01})
	require.Nil(t, err)
	require.Equal(t, byte(0x01), b[1])
	require.Equal(t, byte(120), b[12])
	require.Equal(t, byte(0xFD), b[16])

	_, err = HEVCDecoderConfigurationRecord(nil, testHEVCSPS, testHEVCPPS)
	require.NotNil(t, err)
}

func TestHEVCPacker(t *testing.T) {
	p := NewPacker(true, false)
	vc := av.DefaultVideoConfig()
	vc.Codec = av.H265
	p.SetVideoConfig(vc)

	idr := []byte{0x26, 0x01, 0xaf, 0x06}
	frame := av.NewVideoFrame(h264parser.JoinAVCC([][]byte{testHEVCVPS, testHEVCSPS, testHEVCPPS, idr}), 0, false)
	tags, err := p.PackVideo(frame)
	require.Nil(t, err)

	vt := videoTags(tags)
	require.Equal(t, 2, len(vt))
	require.Equal(t, byte(0x1c), vt[0].Data[0])
	require.Equal(t, byte(PACKET_SEQHDR), vt[0].Data[1])
	// IDR_W_RADL is detected as a key frame even without the flag
	require.Equal(t, byte(0x1c), vt[1].Data[0])
	require.Equal(t, byte(PACKET_NALU), vt[1].Data[1])
}
