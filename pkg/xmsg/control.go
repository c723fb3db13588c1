package xmsg

import "gotell/pkg/xproc"

// 内置控制消息
// 生命周期管理由外部负责, 这里只定义消息本身

// 关闭进程(系统类)
type ShutdownProcess struct{}

func (ShutdownProcess) SystemMsg() {}

// 重启进程(系统类)
type RestartProcess struct{}

func (RestartProcess) SystemMsg() {}

// 监视进程(用户控制类)
type Watch struct {
	Watcher xproc.ID
}

func (Watch) UserControlMsg() {}

// 取消监视(用户控制类)
type Unwatch struct {
	Watcher xproc.ID
}

func (Unwatch) UserControlMsg() {}
