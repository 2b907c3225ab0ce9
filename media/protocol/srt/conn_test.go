package srt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/media/container/flv"
	"github.com/bugVanisher/avpush/media/container/flv/flvio"
)

// recordConn 记录每次Write的长度
type recordConn struct {
	net.Conn
	mu    sync.Mutex
	sizes []int
}

func (r *recordConn) Write(b []byte) (int, error) {
	r.mu.Lock()
	r.sizes = append(r.sizes, len(b))
	r.mu.Unlock()
	return r.Conn.Write(b)
}

func (r *recordConn) maxSize() (m int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sizes {
		if s > m {
			m = s
		}
	}
	return
}

func withDialer(t *testing.T, fn func(addr string, latency time.Duration, streamID string) (io.ReadWriteCloser, error)) {
	old := dialSRT
	dialSRT = fn
	t.Cleanup(func() { dialSRT = old })
}

func TestParseURL(t *testing.T) {
	addr, id, err := ParseURL("srt://127.0.0.1:9000?streamid=publish:live/key")
	require.Nil(t, err)
	require.Equal(t, "127.0.0.1:9000", addr)
	require.Equal(t, "publish:live/key", id)

	addr, _, err = ParseURL(" SRT://[::1]:9000 ")
	require.Nil(t, err)
	require.Equal(t, "[::1]:9000", addr)

	for _, bad := range []string{"", "srt://host", "rtmp://host:1935/live", "srt://:9000"} {
		_, _, err = ParseURL(bad)
		require.NotNil(t, err, bad)
	}
}

func TestPublishFLV(t *testing.T) {
	client, server := net.Pipe()
	rc := &recordConn{Conn: client}
	var gotLatency time.Duration
	var gotID string
	withDialer(t, func(addr string, latency time.Duration, streamID string) (io.ReadWriteCloser, error) {
		gotLatency, gotID = latency, streamID
		return rc, nil
	})

	tagsCh := make(chan flvio.Tag, 16)
	go func() {
		dmx := flv.NewDemuxer(server)
		for {
			tag, err := dmx.ReadTag()
			if err != nil {
				close(tagsCh)
				return
			}
			tagsCh <- tag
		}
	}()

	c, err := Dial(context.Background(), "srt://127.0.0.1:9000?streamid=abc", WithLatency(200*time.Millisecond))
	require.Nil(t, err)
	require.Equal(t, 200*time.Millisecond, gotLatency)
	require.Equal(t, "abc", gotID)

	video := bytes.Repeat([]byte{0x17, 0x01}, 4000)
	require.Nil(t, c.WriteTags([]flvio.Tag{
		{Type: flvio.TAG_VIDEO, Timestamp: 0, Data: video},
		{Type: flvio.TAG_AUDIO, Timestamp: 23, Data: []byte{0xAF, 0x01, 0x21}},
	}))

	tag := <-tagsCh
	require.Equal(t, uint8(flvio.TAG_VIDEO), tag.Type)
	require.Equal(t, video, tag.Data)
	tag = <-tagsCh
	require.Equal(t, uint32(23), tag.Timestamp)

	require.True(t, rc.maxSize() <= PayloadSize)
	require.True(t, c.Packets() >= 7)
	require.True(t, c.TxBytes() > 8000)

	require.Nil(t, c.Close())
	require.Nil(t, c.Close())
	<-c.Done()
	require.Nil(t, c.Err())
	require.NotNil(t, c.WriteTag(flvio.Tag{Type: flvio.TAG_AUDIO, Data: []byte{0xAF, 0x01}}))
	server.Close()
}

func TestPeerClose(t *testing.T) {
	client, server := net.Pipe()
	withDialer(t, func(string, time.Duration, string) (io.ReadWriteCloser, error) {
		return client, nil
	})
	c, err := Dial(context.Background(), "srt://127.0.0.1:9000")
	require.Nil(t, err)
	server.Close()
	select {
	case <-c.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("connection not closed")
	}
	require.True(t, errs.IsRecoverable(c.Err()))
}

func TestDialFailures(t *testing.T) {
	withDialer(t, func(string, time.Duration, string) (io.ReadWriteCloser, error) {
		return nil, errors.New("connection rejected")
	})
	_, err := Dial(context.Background(), "srt://127.0.0.1:9000")
	se, ok := errs.AsStreamError(err)
	require.True(t, ok)
	require.Equal(t, errs.KindConnectionFailed, se.Kind)

	block := make(chan struct{})
	defer close(block)
	withDialer(t, func(string, time.Duration, string) (io.ReadWriteCloser, error) {
		<-block
		return nil, errors.New("late")
	})
	_, err = Dial(context.Background(), "srt://127.0.0.1:9000", WithConnectTimeout(100*time.Millisecond))
	se, ok = errs.AsStreamError(err)
	require.True(t, ok)
	require.Equal(t, errs.KindTimeout, se.Kind)

	_, err = Dial(context.Background(), "srt://host")
	se, ok = errs.AsStreamError(err)
	require.True(t, ok)
	require.False(t, se.Recoverable)
}
