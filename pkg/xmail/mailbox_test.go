package xmail_test

import (
	"fmt"
	"sync"
	"testing"

	"gotell/pkg/xmail"
	"gotell/pkg/xmsg"
	"gotell/pkg/xproc"

	"github.com/stretchr/testify/require"
)

type sysMsg struct{ n int }

func (sysMsg) SystemMsg() {}

type ctlMsg struct{ n int }

func (ctlMsg) UserControlMsg() {}

type usrMsg struct {
	sender int
	n      int
}

func enqueue(mb *xmail.Mailbox, msg interface{}) {
	mb.Enqueue(xmsg.Envelope{
		Target:  xproc.NewID("target"),
		Kind:    xmsg.Classify(msg),
		Message: msg,
	})
}

// 全部出队(单消费者周期), 返回处理顺序
func drain(t *testing.T, mb *xmail.Mailbox) []xmsg.Envelope {
	t.Helper()
	var out []xmsg.Envelope
	for {
		env, state := mb.TryBeginProcessing()
		if state == xmail.BeginEmpty {
			return out
		}
		require.Equal(t, xmail.BeginOK, state)
		out = append(out, env)
		mb.EndProcessing()
	}
}

func TestPriorityThenFIFO(t *testing.T) {
	mb := xmail.New(xmail.MailboxArgs{})

	// 故意乱序入队
	enqueue(mb, usrMsg{n: 1})
	enqueue(mb, ctlMsg{n: 1})
	enqueue(mb, sysMsg{n: 1})
	enqueue(mb, usrMsg{n: 2})
	enqueue(mb, sysMsg{n: 2})
	enqueue(mb, ctlMsg{n: 2})

	out := drain(t, mb)
	require.Len(t, out, 6)

	// 类间: system < user-control < user
	wantKinds := []xmsg.Kind{
		xmsg.KindSystem, xmsg.KindSystem,
		xmsg.KindUserControl, xmsg.KindUserControl,
		xmsg.KindUser, xmsg.KindUser,
	}
	for i, env := range out {
		require.Equal(t, wantKinds[i], env.Kind, "index %d", i)
	}
	// 类内FIFO
	require.Equal(t, sysMsg{n: 1}, out[0].Message)
	require.Equal(t, sysMsg{n: 2}, out[1].Message)
	require.Equal(t, ctlMsg{n: 1}, out[2].Message)
	require.Equal(t, ctlMsg{n: 2}, out[3].Message)
	require.Equal(t, usrMsg{n: 1}, out[4].Message)
	require.Equal(t, usrMsg{n: 2}, out[5].Message)
}

func TestBusyExclusion(t *testing.T) {
	mb := xmail.New(xmail.MailboxArgs{})
	enqueue(mb, usrMsg{n: 1})
	enqueue(mb, usrMsg{n: 2})

	_, state := mb.TryBeginProcessing()
	require.Equal(t, xmail.BeginOK, state)

	// 处理周期进行中, 再次尝试必须拒绝
	_, state = mb.TryBeginProcessing()
	require.Equal(t, xmail.BeginBusy, state)

	mb.EndProcessing()
	env, state := mb.TryBeginProcessing()
	require.Equal(t, xmail.BeginOK, state)
	require.Equal(t, usrMsg{n: 2}, env.Message)
	mb.EndProcessing()

	_, state = mb.TryBeginProcessing()
	require.Equal(t, xmail.BeginEmpty, state)
}

func TestConcurrentEnqueueFIFOPerSender(t *testing.T) {
	const senders = 16
	const perSender = 200

	mb := xmail.New(xmail.MailboxArgs{Capacity: senders * perSender})

	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for n := 0; n < perSender; n++ {
				enqueue(mb, usrMsg{sender: s, n: n})
			}
		}(s)
	}
	wg.Wait()

	out := drain(t, mb)
	require.Len(t, out, senders*perSender)

	// 同一sender的消息保持FIFO
	last := make(map[int]int)
	for _, env := range out {
		m := env.Message.(usrMsg)
		if prev, ok := last[m.sender]; ok {
			require.Equal(t, prev+1, m.n, "sender %d out of order", m.sender)
		} else {
			require.Equal(t, 0, m.n)
		}
		last[m.sender] = m.n
	}
}

func TestSeqMonotonic(t *testing.T) {
	mb := xmail.New(xmail.MailboxArgs{})
	for i := 0; i < 10; i++ {
		enqueue(mb, usrMsg{n: i})
	}
	out := drain(t, mb)
	for i := 1; i < len(out); i++ {
		require.Greater(t, out[i].Seq, out[i-1].Seq)
	}
}

func TestOverflowDropNewest(t *testing.T) {
	var drops []xmail.DropReason
	mb := xmail.New(xmail.MailboxArgs{
		Capacity: 2,
		Policy:   xmail.DropNewest,
		Diag: func(env xmsg.Envelope, reason xmail.DropReason) {
			drops = append(drops, reason)
		},
	})
	enqueue(mb, usrMsg{n: 1})
	enqueue(mb, usrMsg{n: 2})
	enqueue(mb, usrMsg{n: 3}) // 满, 丢弃新消息

	require.Equal(t, []xmail.DropReason{xmail.DropOverflow}, drops)
	out := drain(t, mb)
	require.Len(t, out, 2)
	require.Equal(t, usrMsg{n: 1}, out[0].Message)
	require.Equal(t, usrMsg{n: 2}, out[1].Message)
}

func TestOverflowDropOldest(t *testing.T) {
	var dropped []interface{}
	mb := xmail.New(xmail.MailboxArgs{
		Capacity: 2,
		Policy:   xmail.DropOldest,
		Diag: func(env xmsg.Envelope, reason xmail.DropReason) {
			require.Equal(t, xmail.DropOverflow, reason)
			dropped = append(dropped, env.Message)
		},
	})
	enqueue(mb, usrMsg{n: 1})
	enqueue(mb, usrMsg{n: 2})
	// 满时入队系统消息: 让位的是最旧的低优先级信封
	enqueue(mb, sysMsg{n: 1})

	require.Equal(t, []interface{}{usrMsg{n: 1}}, dropped)
	out := drain(t, mb)
	require.Len(t, out, 2)
	require.Equal(t, sysMsg{n: 1}, out[0].Message)
	require.Equal(t, usrMsg{n: 2}, out[1].Message)
}

func TestCloseDiscards(t *testing.T) {
	var reasons []xmail.DropReason
	mb := xmail.New(xmail.MailboxArgs{
		Diag: func(env xmsg.Envelope, reason xmail.DropReason) {
			reasons = append(reasons, reason)
		},
	})
	enqueue(mb, usrMsg{n: 1})
	enqueue(mb, sysMsg{n: 1})
	mb.Close()

	// 未投递信封全部丢弃
	require.Equal(t, []xmail.DropReason{xmail.DropClosed, xmail.DropClosed}, reasons)
	require.Equal(t, 0, mb.Len())
	require.True(t, mb.Closed())

	// 关闭后入队直接丢弃
	enqueue(mb, usrMsg{n: 2})
	require.Len(t, reasons, 3)

	_, state := mb.TryBeginProcessing()
	require.Equal(t, xmail.BeginEmpty, state)
}

func TestSignalOncePerSchedule(t *testing.T) {
	var signals int
	var mb *xmail.Mailbox
	mb = xmail.New(xmail.MailboxArgs{
		Signal: func(m *xmail.Mailbox) {
			require.Same(t, mb, m)
			signals++
		},
	})

	enqueue(mb, usrMsg{n: 1})
	enqueue(mb, usrMsg{n: 2}) // 已scheduled, 不重复提交
	require.Equal(t, 1, signals)

	_, state := mb.TryBeginProcessing()
	require.Equal(t, xmail.BeginOK, state)
	enqueue(mb, usrMsg{n: 3}) // busy中入队, 不提交
	require.Equal(t, 1, signals)

	// 周期结束仍有积压: 重新提交
	mb.EndProcessing()
	require.Equal(t, 2, signals)
}

func TestDrainUnderMixedLoad(t *testing.T) {
	mb := xmail.New(xmail.MailboxArgs{Capacity: 4096})
	var wg sync.WaitGroup
	for s := 0; s < 8; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				switch n % 3 {
				case 0:
					enqueue(mb, sysMsg{n: n})
				case 1:
					enqueue(mb, ctlMsg{n: n})
				default:
					enqueue(mb, usrMsg{sender: s, n: n})
				}
			}
		}(s)
	}
	wg.Wait()

	out := drain(t, mb)
	require.Len(t, out, 800)
	counts := make(map[xmsg.Kind]int)
	for _, env := range out {
		counts[env.Kind]++
	}
	require.Equal(t, 8*34, counts[xmsg.KindSystem], fmt.Sprintf("%v", counts))
	require.Equal(t, 8*33, counts[xmsg.KindUserControl])
	require.Equal(t, 8*33, counts[xmsg.KindUser])
}
