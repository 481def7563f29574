package danmu

import (
	"math/rand"
	"time"
)

// Backoff 指数退避 + 随机抖动，上限 Max
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter 抖动比例 0-1，实际延迟在 delay*(1±Jitter) 之间
	Jitter float64
}

// DefaultBackoff 1s 起步，翻倍，30s 封顶
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2,
		Jitter:     0.1,
	}
}

// Delay 第 attempt 次重试（从 1 开始）的等待时间
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(b.Initial)
	for i := 1; i < attempt && delay < float64(b.Max); i++ {
		delay *= b.Multiplier
	}
	if b.Jitter > 0 {
		jitter := delay * b.Jitter
		delay = delay - jitter + rand.Float64()*2*jitter
	}
	if delay > float64(b.Max) {
		delay = float64(b.Max)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
