package statistics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bugVanisher/avpush/media/av"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func TestFrameStats(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := NewFrameStats(time.Second)
	s.now = clock.now

	for i := 0; i < 25; i++ {
		_, _, ok := s.Add(1250)
		require.False(t, ok)
		clock.advance(40 * time.Millisecond)
	}
	kbps, fps, ok := s.Add(1250)
	require.True(t, ok)
	// 26 frames * 1250 bytes in 1s
	require.Equal(t, 260, kbps)
	require.Equal(t, 26, fps)

	lk, lf := s.Last()
	require.Equal(t, kbps, lk)
	require.Equal(t, fps, lf)

	s.Reset()
	lk, lf = s.Last()
	require.Equal(t, 0, lk)
	require.Equal(t, 0, lf)
}

func TestPeriodicStatistic(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	ps := NewPeriodicStatistic(DefaultStatGridNum, 1)
	ps.now = clock.now

	for i := 0; i < 10; i++ {
		ps.Stat(100)
		clock.advance(time.Second)
	}
	require.Equal(t, int64(100), ps.Avg())
	require.Equal(t, int64(100), ps.Max())

	clock.advance(time.Minute)
	require.Equal(t, int64(0), ps.Avg())
	require.Equal(t, int64(0), ps.Sum())
}

func TestFPS(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	f := NewFPS()
	f.now = clock.now
	for i := 0; i <= 25; i++ {
		f.Add()
		clock.advance(40 * time.Millisecond)
	}
	require.Equal(t, uint32(26), f.GetFPS())
}

func TestGopAndDelay(t *testing.T) {
	g := NewGop()
	g.Add(0, true)
	require.Equal(t, float64(0), g.GetGop())
	g.Add(time.Second, false)
	g.Add(2*time.Second, true)
	require.Equal(t, float64(2), g.GetGop())

	clock := &fakeClock{t: time.Unix(1000, 0)}
	d := NewDelay()
	d.now = clock.now
	d.Add(0)
	clock.advance(6 * time.Second)
	d.Add(5 * time.Second)
	require.Equal(t, int64(1000), d.GetDelay())
}

func TestAVFlow(t *testing.T) {
	flow := NewAVFlow()
	flow.Stat(av.NewVideoFrame(make([]byte, 100), 0, true))
	flow.Stat(av.NewAudioFrame(make([]byte, 10), 0))
	snap := flow.Snapshot()
	require.Equal(t, float64(0), snap.VideoGop)
	t.Logf("snapshot: %+v", snap)
}
