package xdispatch

import (
	"context"
	"runtime/debug"
	"sync"

	"gotell/pkg/xcommon"
	"gotell/pkg/xlog"
	"gotell/pkg/xmail"

	"go.uber.org/zap"
)

type DispatcherArgs struct {
	Workers int // 固定worker数, 0表示每次提交临时起协程(无界)
}

// 调度器: 以邮箱为互斥单元的worker池
// 同一邮箱同一时刻至多被一个worker处理, 不同邮箱任意交错
type Dispatcher struct {
	workers int
	baseCtx context.Context // 临时协程模式下的执行context

	mu    sync.Mutex
	queue []*xmail.Mailbox // 无界提交队列, Submit永不阻塞

	notify  chan struct{}
	closeCh chan struct{}

	closeOnce sync.Once
	wg        xcommon.WaitGroup
}

func New(ctx context.Context, arg DispatcherArgs) *Dispatcher {
	d := &Dispatcher{
		workers: arg.Workers,
		baseCtx: ctx,
		notify:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.workerLoop(ctx)
	}
	return d
}

// 提交邮箱: 永不阻塞调用方
// Workers为0时直接起协程执行一个处理周期
func (d *Dispatcher) Submit(mb *xmail.Mailbox) {
	if d.workers <= 0 {
		go d.runCycle(d.baseCtx, mb)
		return
	}
	d.mu.Lock()
	d.queue = append(d.queue, mb)
	d.mu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// worker主循环: 空闲时阻塞等待通知, 不自旋
func (d *Dispatcher) workerLoop(ctx context.Context) {
	defer d.wg.Done(ctx)
	for {
		mb, ok := d.next()
		if !ok {
			return
		}
		if mb == nil {
			continue
		}
		d.runCycle(ctx, mb)
	}
}

func (d *Dispatcher) next() (*xmail.Mailbox, bool) {
	for {
		d.mu.Lock()
		if len(d.queue) > 0 {
			mb := d.queue[0]
			d.queue = d.queue[1:]
			remain := len(d.queue) > 0
			d.mu.Unlock()
			if remain {
				// 避免丢通知: 还有积压时补发一次
				select {
				case d.notify <- struct{}{}:
				default:
				}
			}
			return mb, true
		}
		d.mu.Unlock()

		select {
		case <-d.notify:
		case <-d.closeCh:
			return nil, false
		}
	}
}

// 一个处理周期: 取一个信封 => 执行 => 归还
// 行为panic不致命, 记录后继续
func (d *Dispatcher) runCycle(ctx context.Context, mb *xmail.Mailbox) {
	env, state := mb.TryBeginProcessing()
	if state != xmail.BeginOK {
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				xlog.Get(ctx).Error("Behavior panic.",
					zap.Stringer("target", env.Target),
					zap.Any("reason", r),
					zap.String("stack", string(debug.Stack())))
			}
		}()
		mb.Invoke(ctx, env)
	}()
	mb.EndProcessing()
}

// Close 停止worker, 已在执行的周期跑完
func (d *Dispatcher) Close(ctx context.Context) {
	d.closeOnce.Do(func() {
		close(d.closeCh)
	})
	d.wg.Wait()
}
