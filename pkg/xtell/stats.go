package xtell

import (
	"context"
	"strconv"

	"gotell/pkg/xcommon"
	"gotell/pkg/xmail"
	"gotell/pkg/xmsg"

	"go.uber.org/atomic"
)

// 投递统计: 诊断通道的计数器部分
// 所有失败都退化为丢弃+诊断, 不会影响宿主进程
type Stats struct {
	delivered       *atomic.Int64 // 成功入队
	routingMiss     *atomic.Int64 // 目标解析失败
	dropOverflow    *atomic.Int64 // 邮箱溢出丢弃
	dropClosed      *atomic.Int64 // 邮箱已关闭丢弃
	timersFired     *atomic.Int64
	timersCancelled *atomic.Int64
}

func NewStats() *Stats {
	return &Stats{
		delivered:       atomic.NewInt64(0),
		routingMiss:     atomic.NewInt64(0),
		dropOverflow:    atomic.NewInt64(0),
		dropClosed:      atomic.NewInt64(0),
		timersFired:     atomic.NewInt64(0),
		timersCancelled: atomic.NewInt64(0),
	}
}

// OnDrop 邮箱丢弃诊断适配, 作为xmail.DiagFunc挂接
func (s *Stats) OnDrop(env xmsg.Envelope, reason xmail.DropReason) {
	switch reason {
	case xmail.DropOverflow:
		s.dropOverflow.Inc()
	default:
		s.dropClosed.Inc()
	}
}

func (s *Stats) Delivered() int64       { return s.delivered.Load() }
func (s *Stats) RoutingMiss() int64     { return s.routingMiss.Load() }
func (s *Stats) DropOverflow() int64    { return s.dropOverflow.Load() }
func (s *Stats) DropClosed() int64      { return s.dropClosed.Load() }
func (s *Stats) TimersFired() int64     { return s.timersFired.Load() }
func (s *Stats) TimersCancelled() int64 { return s.timersCancelled.Load() }

// Dump 以表格形式输出计数
func (s *Stats) Dump(ctx context.Context) {
	keys := []string{"delivered", "routing-miss", "drop-overflow", "drop-closed", "timers-fired", "timers-cancelled"}
	row := []string{
		strconv.FormatInt(s.delivered.Load(), 10),
		strconv.FormatInt(s.routingMiss.Load(), 10),
		strconv.FormatInt(s.dropOverflow.Load(), 10),
		strconv.FormatInt(s.dropClosed.Load(), 10),
		strconv.FormatInt(s.timersFired.Load(), 10),
		strconv.FormatInt(s.timersCancelled.Load(), 10),
	}
	xcommon.PrintTable(ctx, keys, [][]string{row})
}
