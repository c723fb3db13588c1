package xmail

import (
	"context"
	"sync"

	"gotell/pkg/xmsg"
)

const defaultCapacity = 8192 // 默认容量(三类队列总和)

// 溢出策略
type OverflowPolicy uint8

const (
	DropNewest OverflowPolicy = iota // 丢弃新消息(默认)
	DropOldest                       // 丢弃最旧的低优先级消息
)

// 丢弃原因
type DropReason uint8

const (
	DropOverflow DropReason = iota // 容量已满
	DropClosed                     // 邮箱已关闭
)

func (r DropReason) String() string {
	switch r {
	case DropOverflow:
		return "overflow"
	case DropClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// 丢弃诊断回调, 可能被任意sender协程并发调用
type DiagFunc func(env xmsg.Envelope, reason DropReason)

// TryBeginProcessing结果
type BeginState uint8

const (
	BeginOK    BeginState = iota // 取到信封, 邮箱转为busy
	BeginEmpty                   // 空闲且无消息
	BeginBusy                    // 已有处理周期在进行
)

// 信封处理函数, 由dispatcher worker调用
type InvokeFunc func(ctx context.Context, env xmsg.Envelope)

type MailboxArgs struct {
	Capacity int            // 默认8192
	Policy   OverflowPolicy // 默认DropNewest
	Diag     DiagFunc       // 丢弃诊断(可选)
	Invoke   InvokeFunc     // 信封处理
	Signal   func(*Mailbox) // 提交给dispatcher(非空闲且有消息时触发)
}

// 单进程邮箱: 三类有序子队列 + busy标记
// 不变量: 任一时刻至多一个处理周期; 出队顺序 system < user-control < user, 同类内FIFO
type Mailbox struct {
	mu     sync.Mutex
	queues [xmsg.KindCount][]xmsg.Envelope
	size   int
	seq    uint64 // 入队计数, 锁内递增

	busy      bool // 正在处理一个信封
	scheduled bool // 已提交dispatcher, 尚未被worker取走
	closed    bool

	capacity int
	policy   OverflowPolicy
	diag     DiagFunc
	invoke   InvokeFunc
	signal   func(*Mailbox)
}

func New(arg MailboxArgs) *Mailbox {
	if arg.Capacity <= 0 {
		arg.Capacity = defaultCapacity
	}
	return &Mailbox{
		capacity: arg.Capacity,
		policy:   arg.Policy,
		diag:     arg.Diag,
		invoke:   arg.Invoke,
		signal:   arg.Signal,
	}
}

// 入队: 永不阻塞, 任意sender协程并发安全
// 容量满时按策略丢弃并产生诊断
func (mb *Mailbox) Enqueue(env xmsg.Envelope) {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		mb.drop(env, DropClosed)
		return
	}
	if mb.size >= mb.capacity {
		if mb.policy == DropNewest {
			mb.mu.Unlock()
			mb.drop(env, DropOverflow)
			return
		}
		// DropOldest: 先腾出最旧的低优先级信封
		dropped, ok := mb.evictOldest()
		mb.mu.Unlock()
		if ok {
			mb.drop(dropped, DropOverflow)
		}
		mb.mu.Lock()
		if mb.closed || mb.size >= mb.capacity {
			mb.mu.Unlock()
			mb.drop(env, DropOverflow)
			return
		}
	}
	mb.seq++
	env.Seq = mb.seq
	mb.queues[env.Kind] = append(mb.queues[env.Kind], env)
	mb.size++
	submit := !mb.scheduled && !mb.busy
	if submit {
		mb.scheduled = true
	}
	mb.mu.Unlock()

	if submit && mb.signal != nil {
		mb.signal(mb)
	}
}

// 锁内调用: 从最低优先级的非空队列中移除最旧信封
func (mb *Mailbox) evictOldest() (xmsg.Envelope, bool) {
	for k := int(xmsg.KindCount) - 1; k >= 0; k-- {
		if len(mb.queues[k]) > 0 {
			env := mb.queues[k][0]
			mb.queues[k] = mb.queues[k][1:]
			mb.size--
			return env, true
		}
	}
	return xmsg.Envelope{}, false
}

// 原子地尝试 idle => busy, 并取出下一个待处理信封
// 出队顺序: 最高优先级非空队列, 同类内FIFO
func (mb *Mailbox) TryBeginProcessing() (xmsg.Envelope, BeginState) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.scheduled = false
	if mb.busy {
		return xmsg.Envelope{}, BeginBusy
	}
	for k := 0; k < int(xmsg.KindCount); k++ {
		if len(mb.queues[k]) > 0 {
			env := mb.queues[k][0]
			mb.queues[k] = mb.queues[k][1:]
			mb.size--
			mb.busy = true
			return env, BeginOK
		}
	}
	return xmsg.Envelope{}, BeginEmpty
}

// 单信封处理结束: busy => idle
// 仍有积压时重新提交dispatcher(每周期处理一条, 限制单worker占用)
func (mb *Mailbox) EndProcessing() {
	mb.mu.Lock()
	mb.busy = false
	resubmit := mb.size > 0 && !mb.scheduled && !mb.closed
	if resubmit {
		mb.scheduled = true
	}
	mb.mu.Unlock()

	if resubmit && mb.signal != nil {
		mb.signal(mb)
	}
}

// 处理当前信封, 由worker在TryBeginProcessing成功后调用
func (mb *Mailbox) Invoke(ctx context.Context, env xmsg.Envelope) {
	if mb.invoke == nil {
		return
	}
	mb.invoke(ctx, env)
}

// 关闭邮箱: 丢弃未投递信封(无持久化保证), 后续入队直接丢弃
func (mb *Mailbox) Close() {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return
	}
	mb.closed = true
	var discarded []xmsg.Envelope
	for k := 0; k < int(xmsg.KindCount); k++ {
		discarded = append(discarded, mb.queues[k]...)
		mb.queues[k] = nil
	}
	mb.size = 0
	mb.mu.Unlock()

	for _, env := range discarded {
		mb.drop(env, DropClosed)
	}
}

func (mb *Mailbox) Len() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.size
}

func (mb *Mailbox) Closed() bool {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.closed
}

func (mb *Mailbox) drop(env xmsg.Envelope, reason DropReason) {
	if mb.diag != nil {
		mb.diag(env, reason)
	}
}
