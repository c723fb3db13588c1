package xclock

import (
	"sort"
	"sync"
	"time"
)

// 模拟时钟, 测试用: 手动推进时间, 按到期先后触发
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	entries []*fakeEntry
}

type fakeEntry struct {
	at time.Time
	t  *Timer
	fn func()
}

func NewFakeClock(start time.Time) *FakeClock {
	if start.IsZero() {
		start = time.Unix(0, 0)
	}
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) ScheduleAt(at time.Time, fn func()) (*Timer, error) {
	t := newTimer(nil)
	c.mu.Lock()
	c.entries = append(c.entries, &fakeEntry{at: at, t: t, fn: fn})
	c.mu.Unlock()
	return t, nil
}

// Advance 推进模拟时间, 同步触发所有到期且未取消的定时器
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var due, left []*fakeEntry
	for _, e := range c.entries {
		if !e.at.After(now) {
			due = append(due, e)
		} else {
			left = append(left, e)
		}
	}
	c.entries = left
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, e := range due {
		if e.t.fire() {
			e.fn()
		}
	}
}

// Pending 返回未触发未取消的定时器数量
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if !e.t.Cancelled() {
			n++
		}
	}
	return n
}
