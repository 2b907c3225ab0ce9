package statistics

import (
	"sync"
	"time"
)

const DefaultFrameStatsWindow = time.Second

// FrameStats 固定窗口统计码率(kbps)和帧率, 窗口结束时通过Add返回结果
type FrameStats struct {
	mu     sync.Mutex
	window time.Duration
	begin  time.Time
	bytes  int64
	frames int64

	bitrateKbps int
	fps         int
	now         func() time.Time
}

func NewFrameStats(window time.Duration) *FrameStats {
	if window <= 0 {
		window = DefaultFrameStatsWindow
	}
	return &FrameStats{window: window, now: time.Now}
}

// Add 记录一帧, 窗口满时返回本窗口的码率和帧率
func (s *FrameStats) Add(size int) (bitrateKbps, fps int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.begin.IsZero() {
		s.begin = now
	}
	s.bytes += int64(size)
	s.frames++

	elapsed := now.Sub(s.begin)
	if elapsed < s.window {
		return
	}
	ms := elapsed.Milliseconds()
	s.bitrateKbps = int(s.bytes * 8 / ms)
	s.fps = int(s.frames * 1000 / ms)
	s.bytes = 0
	s.frames = 0
	s.begin = now
	return s.bitrateKbps, s.fps, true
}

// Last 上一个完整窗口的结果
func (s *FrameStats) Last() (bitrateKbps, fps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bitrateKbps, s.fps
}

// Reset ...
func (s *FrameStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begin = time.Time{}
	s.bytes = 0
	s.frames = 0
	s.bitrateKbps = 0
	s.fps = 0
}
