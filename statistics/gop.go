package statistics

import (
	"fmt"
	"sync"
	"time"
)

// Gop 两个关键帧之间的时长
type Gop struct {
	mu  sync.Mutex
	gop time.Duration

	lastKeyTS time.Duration
	gotKey    bool
}

// NewGop ...
func NewGop() *Gop {
	return &Gop{}
}

// Add ts为帧的pts
func (g *Gop) Add(ts time.Duration, keyFrame bool) {
	if !keyFrame {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gotKey {
		g.gop = ts - g.lastKeyTS
	}
	g.lastKeyTS = ts
	g.gotKey = true
}

// GetGop 单位秒, 不足两个关键帧时为0
func (g *Gop) GetGop() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gop.Seconds()
}

func (g *Gop) String() string {
	return fmt.Sprintf("%.2f s", g.GetGop())
}
