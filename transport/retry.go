package transport

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy 重连退避策略, 值类型, 无状态
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool
}

// DefaultRetryPolicy 3次, 1s起步, 最多30s, 翻倍, 带抖动
func DefaultRetryPolicy() RetryPolicy {
	return ExponentialBackoff(3, time.Second, 30*time.Second)
}

func ExponentialBackoff(maxRetries int, base, max time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxRetries:        maxRetries,
		BaseDelay:         base,
		MaxDelay:          max,
		BackoffMultiplier: 2,
		Jitter:            true,
	}
}

func FixedDelay(maxRetries int, delay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxRetries:        maxRetries,
		BaseDelay:         delay,
		MaxDelay:          delay,
		BackoffMultiplier: 1,
	}
}

func NoRetry() RetryPolicy {
	return RetryPolicy{BackoffMultiplier: 1}
}

// Delay 第attempt次(从0开始)重连前的等待时间:
// min(BaseDelay * BackoffMultiplier^attempt, MaxDelay), 开启抖动时再乘以[0.5, 1.0)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.MaxRetries <= 0 || p.BaseDelay <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	mult := p.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay) * math.Pow(mult, float64(attempt))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		d *= 0.5 + rand.Float64()*0.5
	}
	return time.Duration(d)
}
