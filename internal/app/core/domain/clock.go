package domain

import (
	"sync"
	"time"
)

// TimestampPrecision 交易時間精度 (MySQL DATETIME(6) / Postgres timestamptz 都是微秒)
const TimestampPrecision = time.Microsecond

// MonotonicClock 產生嚴格遞增的時間戳
// 儲存層寫入交易時用它分配 Timestamp
type MonotonicClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewMonotonicClock now 為 nil 時使用 time.Now
func NewMonotonicClock(now func() time.Time) *MonotonicClock {
	if now == nil {
		now = time.Now
	}
	return &MonotonicClock{now: now}
}

// Now 回傳 UTC、截到微秒，且一定比上一次回傳的值大
func (c *MonotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(TimestampPrecision)
	if !t.After(c.last) {
		t = c.last.Add(TimestampPrecision)
	}
	c.last = t
	return t
}

// Observe 讓時鐘不會回傳早於 t 的值 (WAL 重放、資料庫載入後呼叫)
func (c *MonotonicClock) Observe(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.last) {
		c.last = t
	}
}
