package downstream

import (
	"context"
	"sync"
	"time"

	"github.com/bugVanisher/avpush/common/errs"
)

type downStreamerManager struct {
	streams sync.Map
}

type downStreamInfo struct {
	downStreamer DownStreamer
	duration     time.Duration
	cancel       context.CancelFunc
}

var DownStreamerManager = &downStreamerManager{streams: sync.Map{}}

// Launch 阻塞直到拉流结束或者duration到期, duration<=0 表示不限时
func Launch(name string, downStreamer DownStreamer, duration time.Duration) (bool, error) {
	var ctx context.Context
	var ctxCancel context.CancelFunc
	if duration > 0 {
		ctx, ctxCancel = context.WithTimeout(context.Background(), duration)
	} else {
		ctx, ctxCancel = context.WithCancel(context.Background())
	}
	defer ctxCancel()
	info := downStreamInfo{
		downStreamer: downStreamer,
		duration:     duration,
		cancel:       ctxCancel,
	}
	if _, loaded := DownStreamerManager.streams.LoadOrStore(name, info); loaded {
		return false, errs.ErrDuplicateStream
	}
	defer DownStreamerManager.streams.Delete(name)
	// Pull will block
	return downStreamer.Pull(ctx)
}

func Stop(name string) error {
	info, ok := DownStreamerManager.streams.Load(name)
	if !ok {
		return errs.ErrStreamNotExist
	}
	info.(downStreamInfo).cancel()
	return nil
}
