package statistics

import (
	"fmt"
	"sync"
	"time"
)

const (
	DelayInterval = time.Second * 5
)

// Delay 墙上时间与媒体时间的差, 正值表示发送落后于实时
type Delay struct {
	mu       sync.Mutex
	delay    time.Duration
	interval time.Duration

	beginTS    time.Time
	firstPktTS time.Duration
	now        func() time.Time
}

func NewDelay() *Delay {
	return &Delay{
		interval: DelayInterval,
		now:      time.Now,
	}
}

func (d *Delay) Add(pktTS time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if d.beginTS.IsZero() {
		d.beginTS = now
		d.firstPktTS = pktTS
		return
	}

	wnd := now.Sub(d.beginTS)
	if wnd > d.interval {
		d.delay = wnd - (pktTS - d.firstPktTS)
		d.beginTS = now
		d.firstPktTS = pktTS
	}
}

// GetDelay 单位ms
func (d *Delay) GetDelay() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delay.Milliseconds()
}

func (d *Delay) String() string {
	return fmt.Sprintf("%d ms", d.GetDelay())
}
