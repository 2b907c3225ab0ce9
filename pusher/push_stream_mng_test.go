package pusher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bugVanisher/avpush/common/errs"
)

type blockingPusher struct {
	started chan struct{}
}

func (p *blockingPusher) Publish(ctx context.Context) error {
	close(p.started)
	<-ctx.Done()
	return nil
}

func TestManagerLaunchStop(t *testing.T) {
	p := &blockingPusher{started: make(chan struct{})}
	errc := make(chan error, 1)
	go func() { errc <- Launch("cam1", p, 0) }()
	<-p.started

	require.ErrorIs(t, Launch("cam1", &blockingPusher{started: make(chan struct{})}, time.Second), errs.ErrDuplicateStream)

	info, ok := Lookup("cam1")
	require.True(t, ok)
	require.Equal(t, "cam1", info.Name)
	require.Nil(t, info.Stats)
	infos := GetAllStreamInfos()
	require.Len(t, infos, 1)

	require.NoError(t, Stop("cam1"))
	require.NoError(t, <-errc)
	_, ok = Lookup("cam1")
	require.False(t, ok)
	require.ErrorIs(t, Stop("cam1"), errs.ErrStreamNotExist)
}

func TestManagerDuration(t *testing.T) {
	p := &blockingPusher{started: make(chan struct{})}
	start := time.Now()
	require.NoError(t, Launch("short", p, 50*time.Millisecond))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	require.Empty(t, GetAllStreamInfos())
}

func TestManagerSessionInfo(t *testing.T) {
	a := newFakeTransport("a", 0)
	s := newTestSession([]*fakeTransport{a})
	errc := make(chan error, 1)
	go func() { errc <- Launch("session", s, 0) }()
	require.Eventually(t, func() bool { return s.State().Kind == SessionStreaming }, time.Second, 5*time.Millisecond)

	info, ok := Lookup("session")
	require.True(t, ok)
	require.Equal(t, "streaming", info.State)
	require.NotNil(t, info.Stats)

	StopAll()
	require.NoError(t, <-errc)
	require.Equal(t, SessionIdle, s.State().Kind)
}
