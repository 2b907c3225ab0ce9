package flv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bugVanisher/avpush/media/av"
	"github.com/bugVanisher/avpush/media/codec/h264parser"
	"github.com/bugVanisher/avpush/media/container/flv/flvio"
)

var (
	testSPS = []byte{0x67, 0x42, 0xC0, 0x1E, 0xDA, 0x02}
	testPPS = []byte{0x68, 0xCE, 0x3C, 0x80}
	testIDR = []byte{0x65, 0x88, 0x84, 0x00}
	testP   = []byte{0x41, 0x9A, 0x02}
)

func videoTags(tags []flvio.Tag) (out []flvio.Tag) {
	for _, tag := range tags {
		if tag.Type == flvio.TAG_VIDEO {
			out = append(out, tag)
		}
	}
	return
}

func TestAVCKeyFrameWithInlineParams(t *testing.T) {
	p := NewPacker(true, false)
	frame := av.NewVideoFrame(h264parser.JoinAVCC([][]byte{testSPS, testPPS, testIDR}), 40*time.Millisecond, true)

	tags, err := p.PackVideo(frame)
	require.Nil(t, err)
	require.Equal(t, 3, len(tags))
	require.Equal(t, uint8(flvio.TAG_SCRIPTDATA), tags[0].Type)

	vt := videoTags(tags)
	require.Equal(t, 2, len(vt))
	require.Equal(t, uint8(flvio.TAG_VIDEO), vt[0].Type)
	require.Equal(t, uint8(flvio.TAG_VIDEO), vt[1].Type)
	require.Equal(t, byte(0x17), vt[0].Data[0])
	require.Equal(t, byte(PACKET_SEQHDR), vt[0].Data[1])
	require.Equal(t, byte(0x17), vt[1].Data[0])
	require.Equal(t, byte(PACKET_NALU), vt[1].Data[1])
	require.Equal(t, uint32(40), vt[1].Timestamp)

	record := []byte{0x01, 0x42, 0xC0, 0x1E, 0xFF, 0xE1, 0x00, 0x06}
	record = append(record, testSPS...)
	record = append(record, 0x01, 0x00, 0x04)
	record = append(record, testPPS...)
	require.Equal(t, record, vt[0].Data[VideoTagHeaderLength:])

	// parameter sets are not repeated in the NALU tag
	require.Equal(t, h264parser.JoinAVCC([][]byte{testIDR}), vt[1].Data[VideoTagHeaderLength:])

	var conf h264parser.AVCDecoderConfRecord
	_, err = conf.Unmarshal(vt[0].Data[VideoTagHeaderLength:])
	require.Nil(t, err)
	require.Equal(t, [][]byte{testSPS}, conf.SPS)
	require.Equal(t, [][]byte{testPPS}, conf.PPS)
}

func TestPackerGating(t *testing.T) {
	p := NewPacker(true, true)

	// no parameter sets yet
	tags, err := p.PackVideo(av.NewVideoFrame(h264parser.JoinAVCC([][]byte{testP}), 0, false))
	require.Nil(t, err)
	require.Empty(t, tags)
	tags, err = p.PackAudio(av.NewAudioFrame([]byte{0x21, 0x10}, 0))
	require.Nil(t, err)
	require.Empty(t, tags)

	p.SetParameterSets([][]byte{testSPS, testPPS})

	// headers go out with the first video frame, the inter frame itself is dropped
	tags, err = p.PackVideo(av.NewVideoFrame(h264parser.JoinAVCC([][]byte{testP}), 10*time.Millisecond, false))
	require.Nil(t, err)
	require.Equal(t, 3, len(tags))
	require.Equal(t, uint8(flvio.TAG_SCRIPTDATA), tags[0].Type)
	require.Equal(t, uint8(flvio.TAG_VIDEO), tags[1].Type)
	require.Equal(t, uint8(flvio.TAG_AUDIO), tags[2].Type)
	require.Equal(t, []byte{0xAF, 0x00, 0x12, 0x08}, tags[2].Data)

	// audio still waits for the first key frame
	tags, err = p.PackAudio(av.NewAudioFrame([]byte{0x21, 0x10}, 20*time.Millisecond))
	require.Nil(t, err)
	require.Empty(t, tags)

	tags, err = p.PackVideo(av.NewVideoFrame(h264parser.JoinAVCC([][]byte{testIDR}), 33*time.Millisecond, true))
	require.Nil(t, err)
	require.Equal(t, 1, len(tags))
	require.Equal(t, byte(0x17), tags[0].Data[0])

	tags, err = p.PackAudio(av.NewAudioFrame([]byte{0x21, 0x10}, 40*time.Millisecond))
	require.Nil(t, err)
	require.Equal(t, 1, len(tags))
	require.Equal(t, []byte{0xAF, 0x01, 0x21, 0x10}, tags[0].Data)

	tags, err = p.PackVideo(av.NewVideoFrame(h264parser.JoinAVCC([][]byte{testP}), 66*time.Millisecond, false))
	require.Nil(t, err)
	require.Equal(t, 1, len(tags))
	require.Equal(t, byte(0x27), tags[0].Data[0])
	require.Equal(t, uint64(4), p.Dropped())

	// a new connection needs metadata and headers again
	p.Reset()
	tags, err = p.PackVideo(av.NewVideoFrame(h264parser.JoinAVCC([][]byte{testIDR}), 100*time.Millisecond, true))
	require.Nil(t, err)
	require.Equal(t, 4, len(tags))
}

func TestPackerAudioOnly(t *testing.T) {
	p := NewPacker(false, true)
	require.Nil(t, p.SetAudioConfig(av.AudioConfig{SampleRate: 48000, ChannelCount: 1, SampleSize: 16}, nil))

	tags, err := p.PackAudio(av.NewAudioFrame([]byte{0x01}, 0))
	require.Nil(t, err)
	require.Equal(t, 3, len(tags))
	require.Equal(t, uint8(flvio.TAG_SCRIPTDATA), tags[0].Type)
	require.Equal(t, []byte{0xAF, 0x00, 0x11, 0x88}, tags[1].Data)
	require.Equal(t, []byte{0xAF, 0x01, 0x01}, tags[2].Data)

	_, err = p.PackVideo(av.NewVideoFrame([]byte{0, 0, 0, 1, 0x65}, 0, true))
	require.NotNil(t, err)
}

func TestPackerRejectsUnknownSampleRate(t *testing.T) {
	p := NewPacker(false, true)
	require.NotNil(t, p.SetAudioConfig(av.AudioConfig{SampleRate: 45000, ChannelCount: 2, SampleSize: 16}, nil))
	require.Nil(t, p.SetAudioConfig(av.AudioConfig{SampleRate: 45000, ChannelCount: 2, SampleSize: 16}, []byte{0x12, 0x10}))
}

func TestAudioHeader(t *testing.T) {
	b := make([]byte, 2)
	FillAudioTagHeader(b, 8, true)
	require.Equal(t, []byte{0xAD, 0x00}, b)
	FillAudioTagHeader(b, 16, false)
	require.Equal(t, []byte{0xAF, 0x01}, b)

	require.Equal(t, []byte{0x12, 0x10}, AudioSpecificConfig(44100, 2))
	require.Equal(t, []byte{0x11, 0x88}, AudioSpecificConfig(48000, 1))
}

func TestSampleRateIndex(t *testing.T) {
	rates := []int{96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050, 16000, 12000, 11025, 8000, 7350}
	for i, rate := range rates {
		require.Equal(t, i, SampleRateIndex(rate))

		sr, ch, err := ParseAudioSpecificConfig(AudioSpecificConfig(rate, 2))
		require.Nil(t, err)
		require.Equal(t, rate, sr)
		require.Equal(t, 2, ch)
	}
	require.Equal(t, SampleRateUnsupported, SampleRateIndex(44000))
	require.Equal(t, SampleRateUnsupported, SampleRateIndex(0))
}

func TestMetaData(t *testing.T) {
	vc := av.VideoConfig{Width: 720, Height: 1280, FPS: 25, Codec: av.H265}
	ac := av.AudioConfig{SampleRate: 44100, ChannelCount: 2, SampleSize: 16}
	vals, err := flvio.ParseAMF0Vals(MetaData(true, true, vc, ac))
	require.Nil(t, err)
	require.Equal(t, 2, len(vals))
	require.Equal(t, "onMetaData", vals[0])

	meta, ok := vals[1].(flvio.AMFECMAArray)
	require.True(t, ok)
	require.Equal(t, float64(720), meta.Get("width"))
	require.Equal(t, float64(1280), meta.Get("height"))
	require.Equal(t, float64(25), meta.Get("framerate"))
	require.Equal(t, float64(VIDEO_HEVC), meta.Get("videocodecid"))
	require.Equal(t, float64(44100), meta.Get("audiosamplerate"))
	require.Equal(t, float64(16), meta.Get("audiosamplesize"))
	require.Equal(t, true, meta.Get("stereo"))
	require.Equal(t, float64(SOUND_AAC), meta.Get("audiocodecid"))
}

func TestVideoSequenceHeaderErrors(t *testing.T) {
	_, err := VideoSequenceHeader(av.H264, [][]byte{{0x67, 0x42}, testPPS})
	require.NotNil(t, err)
	_, err = VideoSequenceHeader(av.H265, [][]byte{testSPS, testPPS})
	require.NotNil(t, err)
}
