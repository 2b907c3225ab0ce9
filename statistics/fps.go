package statistics

import (
	"fmt"
	"sync"
	"time"
)

// FPS 帧率统计, 每个interval刷新一次
type FPS struct {
	mu       sync.Mutex
	fps      uint32
	interval time.Duration

	frameCount int64
	beginTS    int64
	now        func() time.Time
}

// NewFPS 创建FPS实例
func NewFPS() *FPS {
	return &FPS{
		interval: time.Second,
		now:      time.Now,
	}
}

// Add ...
func (f *FPS) Add() {
	f.mu.Lock()
	defer f.mu.Unlock()

	nowTS := f.now().UnixNano()
	if f.beginTS == 0 {
		f.beginTS = nowTS
	}
	f.frameCount++
	d := nowTS - f.beginTS
	if d >= int64(f.interval) {
		f.fps = uint32(f.frameCount * int64(time.Second) / d)
		f.frameCount = 0
		f.beginTS = nowTS
	}
}

// GetFPS ...
func (f *FPS) GetFPS() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fps
}

func (f *FPS) String() string {
	return fmt.Sprintf("%d", f.GetFPS())
}
