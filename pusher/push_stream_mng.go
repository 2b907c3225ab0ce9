package pusher

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/avpush/common/errs"
)

type upStreamerManager struct {
	streams sync.Map
}

type upStreamInfo struct {
	pusher    Pusher
	duration  time.Duration
	startedAt time.Time
	cancel    context.CancelFunc
}

// StreamInfo 一路正在推的流
type StreamInfo struct {
	Name      string        `json:"name"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
	State     string        `json:"state,omitempty"`
	Stats     *StreamStats  `json:"stats,omitempty"`
}

// StatsProvider 可以提供实时统计的Pusher, Session满足
type StatsProvider interface {
	State() SessionState
	Stats() StreamStats
}

var UpStreamerManager = &upStreamerManager{streams: sync.Map{}}

// Launch 阻塞直到推流结束, duration<=0 表示一直推到Stop
func Launch(name string, pusher Pusher, duration time.Duration) error {
	return LaunchContext(context.Background(), name, pusher, duration)
}

func LaunchContext(ctx context.Context, name string, pusher Pusher, duration time.Duration) error {
	var cancel context.CancelFunc
	if duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, duration)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	info := upStreamInfo{
		pusher:    pusher,
		duration:  duration,
		startedAt: time.Now(),
		cancel:    cancel,
	}
	if _, loaded := UpStreamerManager.streams.LoadOrStore(name, info); loaded {
		return errs.ErrDuplicateStream
	}
	defer UpStreamerManager.streams.Delete(name)

	log.Info().Str("name", name).Dur("duration", duration).Msg("[manager] launch")
	// publish will block
	err := pusher.Publish(ctx)
	if err != nil {
		log.Error().Str("name", name).Err(err).Msg("[manager] publish")
		return err
	}
	log.Info().Str("name", name).Msg("[manager] finished")
	return nil
}

func Stop(name string) error {
	info, ok := UpStreamerManager.streams.Load(name)
	if !ok {
		return errs.ErrStreamNotExist
	}
	info.(upStreamInfo).cancel()
	return nil
}

func StopAll() {
	UpStreamerManager.streams.Range(func(key, value interface{}) bool {
		pushInfo := value.(upStreamInfo)
		pushInfo.cancel()
		return true
	})
}

// Lookup 按名字查找正在推的流
func Lookup(name string) (StreamInfo, bool) {
	v, ok := UpStreamerManager.streams.Load(name)
	if !ok {
		return StreamInfo{}, false
	}
	return describe(name, v.(upStreamInfo)), true
}

// GetAllStreamInfos 按名字排序
func GetAllStreamInfos() (infos []StreamInfo) {
	UpStreamerManager.streams.Range(func(key, value interface{}) bool {
		infos = append(infos, describe(key.(string), value.(upStreamInfo)))
		return true
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func describe(name string, pushInfo upStreamInfo) StreamInfo {
	info := StreamInfo{
		Name:      name,
		Duration:  pushInfo.duration,
		StartedAt: pushInfo.startedAt,
	}
	if p, ok := pushInfo.pusher.(StatsProvider); ok {
		stats := p.Stats()
		info.State = p.State().String()
		info.Stats = &stats
	}
	return info
}
