package main

import (
	"context"
	"flag"
	"time"

	"gotell/pkg/xclock"
	"gotell/pkg/xcommon"
	"gotell/pkg/xdispatch"
	"gotell/pkg/xenv"
	"gotell/pkg/xlog"
	"gotell/pkg/xmail"
	"gotell/pkg/xmsg"
	"gotell/pkg/xproc"
	"gotell/pkg/xregistry"
	"gotell/pkg/xtell"

	"go.uber.org/zap"
)

var children = flag.Int("children", 3, "child process count")

type config struct {
	Workers    int `env:"TELL_WORKERS" envDefault:"4"`
	MailboxCap int `env:"TELL_MAILBOX_CAP" envDefault:"8192"`
	TimerCap   int `env:"TELL_TIMER_CAP" envDefault:"65536"`
}

type ping struct {
	Round int
}

func main() {
	flag.Parse()
	ctx := context.Background()
	defer xcommon.Recover(ctx)

	conf := &config{}
	if err := xenv.EnvLoad(conf); err != nil {
		panic(err)
	}

	stats := xtell.NewStats()
	dispatcher := xdispatch.New(ctx, xdispatch.DispatcherArgs{Workers: conf.Workers})
	defer dispatcher.Close(ctx)

	table := xregistry.NewTable(ctx, xregistry.TableArgs{
		Dispatcher: dispatcher,
		Capacity:   conf.MailboxCap,
		Policy:     xmail.DropNewest,
		Diag:       stats.OnDrop,
	})
	defer table.Shutdown(ctx)

	router := xtell.NewRouter(xtell.RouterArgs{
		Resolver: table,
		Provider: table,
		Clock:    xclock.NewSystemClock(xclock.SystemClockArgs{MaxPending: conf.TimerCap}),
		Stats:    stats,
	})

	// 父进程: 收到pong计数
	parent := table.Spawn(ctx, xregistry.SpawnArgs{
		Behavior: func(ctx context.Context, env xmsg.Envelope) {
			xlog.Get(ctx).Info("Parent recv.", zap.Any("msg", env.Message), zap.Stringer("from", env.Sender))
		},
	})

	// 子进程: 收到ping回给父进程
	for i := 0; i < *children; i++ {
		table.Spawn(ctx, xregistry.SpawnArgs{
			Parent: parent,
			Behavior: func(ctx context.Context, env xmsg.Envelope) {
				if p, ok := env.Message.(ping); ok {
					xlog.Get(ctx).Debug("Child recv ping.", zap.Int("round", p.Round))
					router.TellParent(ctx, p)
				}
			},
		})
	}

	parentCtx := xproc.WithSelf(ctx, parent)
	kids := table.Children(parent)

	// 立即广播: 跳过第一个子进程
	router.TellChildren(parentCtx, ping{Round: 1}, func(id xproc.ID) bool {
		return id != kids[0]
	})

	// 延迟广播
	if _, err := router.TellChildrenAfter(parentCtx, ping{Round: 2}, nil, 100*time.Millisecond); err != nil {
		panic(err)
	}

	// 延迟发送后立刻取消: 不会有投递
	c, err := router.TellAfter(parentCtx, kids[0], ping{Round: 3}, 200*time.Millisecond, parent)
	if err != nil {
		panic(err)
	}
	c.Cancel()

	time.Sleep(500 * time.Millisecond)

	avg := xcommon.SafeDivision(stats.Delivered(), int64(conf.Workers))
	xlog.Get(ctx).Info("Demo done.", zap.Int64("delivered-per-worker", avg))
	stats.Dump(ctx)
}
