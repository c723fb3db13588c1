package xmsg

import "gotell/pkg/xproc"

// 信封: 消息 + 路由元数据
// 入队后归目标邮箱独占持有, 直到出队
type Envelope struct {
	Target  xproc.ID
	Sender  xproc.ID // 可为None, 表示system/unknown
	Kind    Kind     // 发送时分类, 之后不变
	Seq     uint64   // 入队时分配, 仅用于同类内FIFO
	Message interface{}
}
