package xtell

import (
	"context"
	"time"

	"gotell/pkg/xclock"
	"gotell/pkg/xproc"

	"github.com/pkg/errors"
)

// 延迟发送的取消句柄
// Cancel幂等: 调用零次/一次/多次, 以及触发后调用都安全
// 触发与取消互斥: 先到者生效
type Cancellable struct {
	t     *xclock.Timer
	stats *Stats
}

func (c *Cancellable) Cancel() bool {
	if !c.t.Cancel() {
		return false
	}
	c.stats.timersCancelled.Inc()
	return true
}

func (c *Cancellable) Fired() bool {
	return c.t.Fired()
}

func (c *Cancellable) Cancelled() bool {
	return c.t.Cancelled()
}

// 延迟发送: 相对时长, 调用时换算为绝对到期时间(只换算一次)
func (r *Router) TellAfter(ctx context.Context, target xproc.ID, msg interface{}, d time.Duration, sender xproc.ID) (*Cancellable, error) {
	return r.TellAt(ctx, target, msg, r.clock.Now().Add(d), sender)
}

// 延迟发送: 绝对到期时间
// 注册失败(定时器资源耗尽)同步返回错误, 这是唯一同步报错的路径
func (r *Router) TellAt(ctx context.Context, target xproc.ID, msg interface{}, at time.Time, sender xproc.ID) (*Cancellable, error) {
	t, err := r.clock.ScheduleAt(at, func() {
		r.stats.timersFired.Inc()
		r.Tell(ctx, target, msg, sender)
	})
	if err != nil {
		return nil, errors.Wrap(err, "schedule tell")
	}
	return &Cancellable{t: t, stats: r.stats}, nil
}

// 延迟广播: 整个广播作为单个定时回调
// 子进程集合在触发时重新解析(非注册时), 期间增删的子进程按触发时状态生效
func (r *Router) TellChildrenAfter(ctx context.Context, msg interface{}, pred Predicate, d time.Duration) (*Cancellable, error) {
	return r.TellChildrenAt(ctx, msg, pred, r.clock.Now().Add(d))
}

func (r *Router) TellChildrenAt(ctx context.Context, msg interface{}, pred Predicate, at time.Time) (*Cancellable, error) {
	t, err := r.clock.ScheduleAt(at, func() {
		r.stats.timersFired.Inc()
		r.TellChildren(ctx, msg, pred)
	})
	if err != nil {
		return nil, errors.Wrap(err, "schedule tell children")
	}
	return &Cancellable{t: t, stats: r.stats}, nil
}
