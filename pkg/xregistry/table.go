package xregistry

import (
	"context"
	"fmt"
	"sync"

	"gotell/pkg/xdispatch"
	"gotell/pkg/xlog"
	"gotell/pkg/xmail"
	"gotell/pkg/xmsg"
	"gotell/pkg/xproc"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// 进程行为: 在进程自己的处理周期内被调用, 同一进程严格串行
type Behavior func(ctx context.Context, env xmsg.Envelope)

type TableArgs struct {
	Dispatcher *xdispatch.Dispatcher
	Capacity   int                  // 邮箱默认容量
	Policy     xmail.OverflowPolicy // 邮箱默认溢出策略
	Diag       xmail.DiagFunc       // 邮箱丢弃诊断(可选)
}

// 进程表: 标识 => 邮箱/父子拓扑
// 实现地址解析门面与邮箱提供者
type Table struct {
	dispatcher *xdispatch.Dispatcher
	capacity   int
	policy     xmail.OverflowPolicy
	diag       xmail.DiagFunc
	seq        *atomic.Uint64

	mu    sync.RWMutex
	procs map[xproc.ID]*entry
}

type entry struct {
	id       xproc.ID
	parent   xproc.ID
	children map[xproc.ID]struct{}
	mb       *xmail.Mailbox
}

func NewTable(ctx context.Context, arg TableArgs) *Table {
	return &Table{
		dispatcher: arg.Dispatcher,
		capacity:   arg.Capacity,
		policy:     arg.Policy,
		diag:       arg.Diag,
		seq:        atomic.NewUint64(0),
		procs:      make(map[xproc.ID]*entry),
	}
}

type SpawnArgs struct {
	Parent   xproc.ID // 可为None(根进程)
	Behavior Behavior
	Capacity int                  // 0使用表默认
	Policy   xmail.OverflowPolicy // 0使用表默认
}

// Spawn 创建进程: 分配标识, 建邮箱, 挂接到父进程
func (t *Table) Spawn(ctx context.Context, arg SpawnArgs) xproc.ID {
	id := xproc.NewID(fmt.Sprintf("proc-%d", t.seq.Inc()))
	capacity := arg.Capacity
	if capacity == 0 {
		capacity = t.capacity
	}
	policy := arg.Policy
	if policy == 0 {
		policy = t.policy
	}

	behavior := arg.Behavior
	invoke := func(ctx context.Context, env xmsg.Envelope) {
		if behavior == nil {
			return
		}
		// 行为执行context: 绑定当前进程标识与日志字段
		ctx = xproc.WithSelf(ctx, id)
		ctx = xlog.NewContext(ctx, zap.Stringer("proc", id))
		behavior(ctx, env)
	}

	mb := xmail.New(xmail.MailboxArgs{
		Capacity: capacity,
		Policy:   policy,
		Diag:     t.diag,
		Invoke:   invoke,
		Signal:   t.dispatcher.Submit,
	})

	t.mu.Lock()
	t.procs[id] = &entry{
		id:       id,
		parent:   arg.Parent,
		children: make(map[xproc.ID]struct{}),
		mb:       mb,
	}
	if p, ok := t.procs[arg.Parent]; ok {
		p.children[id] = struct{}{}
	}
	t.mu.Unlock()
	return id
}

// Kill 移除进程: 关闭邮箱(丢弃积压), 从拓扑摘除
// 其子进程成为根进程(监督树重建由外部负责)
func (t *Table) Kill(ctx context.Context, id xproc.ID) {
	t.mu.Lock()
	e, ok := t.procs[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.procs, id)
	if p, pok := t.procs[e.parent]; pok {
		delete(p.children, id)
	}
	for child := range e.children {
		if c, cok := t.procs[child]; cok {
			c.parent = xproc.None
		}
	}
	t.mu.Unlock()

	e.mb.Close()
}

// Parent 地址解析: 父进程, 未注册返回None
func (t *Table) Parent(of xproc.ID) xproc.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.procs[of]; ok {
		return e.parent
	}
	return xproc.None
}

// Children 地址解析: 子进程快照
func (t *Table) Children(of xproc.ID) []xproc.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.procs[of]
	if !ok {
		return nil
	}
	out := make([]xproc.ID, 0, len(e.children))
	for id := range e.children {
		out = append(out, id)
	}
	return out
}

// MailboxFor 邮箱提供者实现
func (t *Table) MailboxFor(id xproc.ID) (*xmail.Mailbox, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.procs[id]; ok {
		return e.mb, true
	}
	return nil, false
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.procs)
}

// Shutdown 关闭全部进程邮箱
func (t *Table) Shutdown(ctx context.Context) {
	t.mu.Lock()
	all := make([]*entry, 0, len(t.procs))
	for _, e := range t.procs {
		all = append(all, e)
	}
	t.procs = make(map[xproc.ID]*entry)
	t.mu.Unlock()

	for _, e := range all {
		e.mb.Close()
	}
}
