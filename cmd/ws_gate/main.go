package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"time"

	"gotell/pkg/xclock"
	"gotell/pkg/xcommon"
	"gotell/pkg/xdispatch"
	"gotell/pkg/xenv"
	"gotell/pkg/xlog"
	"gotell/pkg/xmsg"
	"gotell/pkg/xregistry"
	"gotell/pkg/xtell"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	addr = flag.String("addr", ":5100", "listen addr")
	path = flag.String("path", "/gate", "websocket path")
)

const (
	writeTimeout   = 10 * time.Second
	writeChanLimit = 200
)

type config struct {
	Workers    int `env:"TELL_WORKERS" envDefault:"4"`
	MailboxCap int `env:"TELL_MAILBOX_CAP" envDefault:"8192"`
}

// 入站帧: 普通用户消息
type frame struct {
	data []byte
}

type gate struct {
	table  *xregistry.Table
	router *xtell.Router
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
	table := xregistry.NewTable(ctx, xregistry.TableArgs{
		Dispatcher: dispatcher,
		Capacity:   conf.MailboxCap,
		Diag:       stats.OnDrop,
	})
	g := &gate{
		table: table,
		router: xtell.NewRouter(xtell.RouterArgs{
			Resolver: table,
			Provider: table,
			Clock:    xclock.NewSystemClock(xclock.SystemClockArgs{}),
			Stats:    stats,
		}),
	}

	upgrader := &websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.Handle(*path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			xlog.Get(ctx).Error("Upgrade connection failed.", zap.Any("err", err))
			return
		}
		g.serveConn(ctx, conn)
	}))

	httpSvr := &http.Server{
		Addr:    *addr,
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	go func() {
		if err := httpSvr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()

	xcommon.UntilSignal(ctx)

	_ = httpSvr.Close()
	table.Shutdown(ctx)
	dispatcher.Close(ctx)
	stats.Dump(ctx)
}

// 每条连接一个进程: 入站帧经Tell进入内核, 行为把回显帧写回writeCh
func (g *gate) serveConn(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	writeCh := make(chan []byte, writeChanLimit)
	pid := g.table.Spawn(ctx, xregistry.SpawnArgs{
		Behavior: func(ctx context.Context, env xmsg.Envelope) {
			f, ok := env.Message.(frame)
			if !ok {
				return
			}
			select {
			case writeCh <- f.data:
			default:
				xlog.Get(ctx).Warn("Write channel full, frame dropped.")
			}
		},
	})
	ctx = xlog.NewContext(ctx, zap.Stringer("proc", pid))
	defer g.table.Kill(ctx, pid)

	var wg xcommon.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done(ctx)
		for {
			select {
			case data := <-writeCh:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
					xlog.Get(ctx).Warn("Write frame failed.", zap.Any("err", err))
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if e, ok := err.(*websocket.CloseError); !ok || e.Code != websocket.CloseNormalClosure {
				xlog.Get(ctx).Warn("Read frame failed.", zap.Any("err", err))
			}
			break
		}
		g.router.Tell(ctx, pid, frame{data: data}, pid)
	}

	close(done)
	wg.Wait()
}
