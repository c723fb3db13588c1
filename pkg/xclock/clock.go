package xclock

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// 注册的定时器超过上限时同步返回此错误
var ErrTimerExhausted = errors.New("pending timer capacity exhausted")

const defaultMaxPending = 65536

// 时钟/定时服务: 绝对时间点的一次性回调
type Clock interface {
	Now() time.Time
	// ScheduleAt 注册一次性回调, 返回取消句柄
	// 注册失败(资源耗尽)同步返回错误
	ScheduleAt(at time.Time, fn func()) (*Timer, error)
}

// 定时器状态机: pending => fired 或 pending => cancelled, 互斥且不可逆
const (
	statePending int32 = iota
	stateFired
	stateCancelled
)

// 取消句柄, 由调用方持有
// Cancel幂等, 触发后调用是空操作
type Timer struct {
	state   *atomic.Int32
	stop    func()
	release func()
}

func newTimer(release func()) *Timer {
	return &Timer{state: atomic.NewInt32(statePending), release: release}
}

// fire 尝试 pending => fired, 成功返回true(此后不可取消)
func (t *Timer) fire() bool {
	if !t.state.CAS(statePending, stateFired) {
		return false
	}
	if t.release != nil {
		t.release()
	}
	return true
}

// Cancel 尝试 pending => cancelled
// 返回true表示成功取消(回调不会再执行); 已触发或已取消时返回false
func (t *Timer) Cancel() bool {
	if !t.state.CAS(statePending, stateCancelled) {
		return false
	}
	if t.stop != nil {
		t.stop()
	}
	if t.release != nil {
		t.release()
	}
	return true
}

func (t *Timer) Fired() bool {
	return t.state.Load() == stateFired
}

func (t *Timer) Cancelled() bool {
	return t.state.Load() == stateCancelled
}

type SystemClockArgs struct {
	MaxPending int // 待触发定时器上限, 默认65536
}

// 真实时钟, 基于time.AfterFunc
// 并发注册/取消安全
type SystemClock struct {
	maxPending int64
	pending    *atomic.Int64
}

func NewSystemClock(arg SystemClockArgs) *SystemClock {
	if arg.MaxPending <= 0 {
		arg.MaxPending = defaultMaxPending
	}
	return &SystemClock{
		maxPending: int64(arg.MaxPending),
		pending:    atomic.NewInt64(0),
	}
}

func (c *SystemClock) Now() time.Time {
	return time.Now()
}

func (c *SystemClock) Pending() int64 {
	return c.pending.Load()
}

func (c *SystemClock) ScheduleAt(at time.Time, fn func()) (*Timer, error) {
	if c.pending.Inc() > c.maxPending {
		c.pending.Dec()
		return nil, errors.Wrapf(ErrTimerExhausted, "max %d", c.maxPending)
	}
	t := newTimer(func() { c.pending.Dec() })
	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	tm := time.AfterFunc(d, func() {
		// 与Cancel的竞争由状态机裁决: 先到者生效
		if t.fire() {
			fn()
		}
	})
	t.stop = func() { tm.Stop() }
	return t, nil
}
