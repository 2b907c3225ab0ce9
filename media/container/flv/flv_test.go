package flv

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bugVanisher/avpush/media/av"
	"github.com/bugVanisher/avpush/media/codec/h264parser"
	"github.com/bugVanisher/avpush/media/container/flv/flvio"
)

func TestDemuxer(t *testing.T) {
	var buf bytes.Buffer
	m := NewMuxer(&buf, true, true)
	p := NewPacker(true, true)

	var written []flvio.Tag
	for i := 0; i < 30; i++ {
		ts := time.Duration(i) * 40 * time.Millisecond
		data := h264parser.JoinAVCC([][]byte{testP})
		if i%10 == 0 {
			data = h264parser.JoinAVCC([][]byte{testSPS, testPPS, testIDR})
		}
		tags, err := p.PackVideo(av.NewVideoFrame(data, ts, i%10 == 0))
		require.Nil(t, err)
		written = append(written, tags...)
		require.Nil(t, m.WriteTags(tags))

		tags, err = p.PackAudio(av.NewAudioFrame([]byte{0x21, 0x10, 0x05}, ts))
		require.Nil(t, err)
		written = append(written, tags...)
		require.Nil(t, m.WriteTags(tags))
	}
	require.Equal(t, uint64(buf.Len()), m.Written())

	d := NewDemuxer(&buf)
	require.Nil(t, d.Prepare())
	require.True(t, d.HasVideo())
	require.True(t, d.HasAudio())

	count := 0
	for {
		tag, err := d.ReadTag()
		if err == io.EOF {
			t.Logf("read tag end, count:%d\n", count)
			break
		}
		require.Nil(t, err)
		require.Equal(t, written[count], tag)
		count++
	}
	// metadata + 2 sequence headers + 30 video + 30 audio
	require.Equal(t, 63, count)
}

func TestParseTags(t *testing.T) {
	vt, err := ParseVideoTag(VideoData(av.H264, true, []byte{0, 0, 0, 1, 0x65}))
	require.Nil(t, err)
	require.Equal(t, uint8(FRAME_KEY), vt.FrameType)
	require.Equal(t, av.H264, vt.Codec)
	require.Equal(t, uint8(PACKET_NALU), vt.PacketType)
	require.Equal(t, []byte{0, 0, 0, 1, 0x65}, vt.Data)

	_, err = ParseVideoTag([]byte{0x12, 0, 0, 0, 0})
	require.NotNil(t, err)

	at, err := ParseAudioTag(AudioData(8, true, []byte{0x12, 0x10}))
	require.Nil(t, err)
	require.Equal(t, 8, at.SampleSize)
	require.Equal(t, uint8(AAC_SEQHDR), at.PacketType)

	_, err = ParseAudioTag([]byte{0x2F, 0x01})
	require.NotNil(t, err)
}
