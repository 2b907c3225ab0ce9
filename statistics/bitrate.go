package statistics

import (
	"fmt"
)

// Bitrate 码率统计对象, 单位bit/s
type Bitrate struct {
	statistic *PeriodicStatistic
}

// NewBitrate ...
func NewBitrate() *Bitrate {
	return &Bitrate{
		statistic: NewPeriodicStatistic(DefaultStatGridNum, 1),
	}
}

// AddBytes 按字节数累计
func (b *Bitrate) AddBytes(n int) {
	b.statistic.Stat(int64(n) * 8)
}

// GetBitrate ...
func (b *Bitrate) GetBitrate() uint64 {
	return uint64(b.statistic.Avg())
}

// GetKbps ...
func (b *Bitrate) GetKbps() int {
	return int(b.statistic.Avg() / 1000)
}

// GetBitTotal 统计周期内的总bit数
func (b *Bitrate) GetBitTotal() uint64 {
	return uint64(b.statistic.Sum())
}

func (b *Bitrate) String() string {
	return fmt.Sprintf("%dkb/s", b.statistic.Avg()/1000)
}
