package xlatency

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"gotell/pkg/xmsg"
	"gotell/pkg/xregistry"
)

type InjectorArgs struct {
	Seed int64         // 0使用当前时间
	Min  time.Duration // 单条消息处理的最小附加延迟
	Max  time.Duration // 最大附加延迟
}

// 处理延迟注入: 放大并发竞争窗口, 压测用
// rand.Rand非并发安全, 加锁保护
type Injector struct {
	mu  sync.Mutex
	rnd *rand.Rand
	min time.Duration
	max time.Duration
}

func NewInjector(arg InjectorArgs) *Injector {
	seed := arg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if arg.Max < arg.Min {
		arg.Max = arg.Min
	}
	return &Injector{
		rnd: rand.New(rand.NewSource(seed)),
		min: arg.Min,
		max: arg.Max,
	}
}

// Wrap 在行为前注入随机延迟
func (in *Injector) Wrap(b xregistry.Behavior) xregistry.Behavior {
	return func(ctx context.Context, env xmsg.Envelope) {
		in.Sleep()
		b(ctx, env)
	}
}

func (in *Injector) Sleep() {
	d := in.next()
	if d > 0 {
		time.Sleep(d)
	}
}

func (in *Injector) next() time.Duration {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.max <= in.min {
		return in.min
	}
	return in.min + time.Duration(in.rnd.Int63n(int64(in.max-in.min)))
}
