package xtell

import (
	"context"
	"fmt"

	"gotell/pkg/xclock"
	"gotell/pkg/xlog"
	"gotell/pkg/xmail"
	"gotell/pkg/xmsg"
	"gotell/pkg/xproc"

	"go.uber.org/zap"
)

// 地址解析门面(外部协作者), 快照语义
type Resolver interface {
	Parent(of xproc.ID) xproc.ID
	Children(of xproc.ID) []xproc.ID
}

// 邮箱提供者(外部协作者), 邮箱生命周期由外部管理
type MailboxProvider interface {
	MailboxFor(id xproc.ID) (*xmail.Mailbox, bool)
}

// 子进程过滤谓词
type Predicate func(id xproc.ID) bool

type RouterArgs struct {
	Resolver Resolver
	Provider MailboxProvider
	Clock    xclock.Clock // 默认SystemClock
	Stats    *Stats       // 默认新建
}

// tell入口: 分类 => 解析 => 入队
// 所有发送都是fire-and-forget, 永不阻塞调用方
type Router struct {
	resolver Resolver
	provider MailboxProvider
	clock    xclock.Clock
	stats    *Stats
}

func NewRouter(arg RouterArgs) *Router {
	if arg.Clock == nil {
		arg.Clock = xclock.NewSystemClock(xclock.SystemClockArgs{})
	}
	if arg.Stats == nil {
		arg.Stats = NewStats()
	}
	return &Router{
		resolver: arg.Resolver,
		provider: arg.Provider,
		clock:    arg.Clock,
		stats:    arg.Stats,
	}
}

func (r *Router) Stats() *Stats {
	return r.stats
}

func (r *Router) Clock() xclock.Clock {
	return r.clock
}

// 即时发送
// 目标无法解析时丢弃并产生诊断, 不向调用方抛错(异步发送, 调用方已返回)
func (r *Router) Tell(ctx context.Context, target xproc.ID, msg interface{}, sender xproc.ID) {
	if target.IsNone() {
		r.miss(ctx, target, msg)
		return
	}
	mb, ok := r.provider.MailboxFor(target)
	if !ok {
		r.miss(ctx, target, msg)
		return
	}
	mb.Enqueue(xmsg.Envelope{
		Target:  target,
		Sender:  sender,
		Kind:    xmsg.Classify(msg),
		Message: msg,
	})
	r.stats.delivered.Inc()
}

// 发给自己: 从context解析当前进程标识
func (r *Router) TellSelf(ctx context.Context, msg interface{}) {
	self := xproc.SelfFrom(ctx)
	r.Tell(ctx, self, msg, self)
}

// 发给父进程
func (r *Router) TellParent(ctx context.Context, msg interface{}) {
	self := xproc.SelfFrom(ctx)
	r.Tell(ctx, r.resolver.Parent(self), msg, self)
}

// 广播给子进程(调用时快照), pred为nil表示全部
// 兄弟邮箱之间的投递顺序不保证
func (r *Router) TellChildren(ctx context.Context, msg interface{}, pred Predicate) {
	self := xproc.SelfFrom(ctx)
	for _, child := range r.resolver.Children(self) {
		if pred == nil || pred(child) {
			r.Tell(ctx, child, msg, self)
		}
	}
}

func (r *Router) miss(ctx context.Context, target xproc.ID, msg interface{}) {
	r.stats.routingMiss.Inc()
	xlog.Get(ctx).Warn("Tell target not resolved, message dropped.",
		zap.Stringer("target", target),
		zap.String("msg", fmt.Sprintf("%T", msg)))
}
