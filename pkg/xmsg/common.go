package xmsg

// 消息类别, 数值越小优先级越高
type Kind uint8

const (
	KindSystem      Kind = 0 // 系统控制消息
	KindUserControl Kind = 1 // 用户协议控制消息
	KindUser        Kind = 2 // 普通用户消息

	KindCount = 3
)

func (k Kind) String() string {
	switch k {
	case KindSystem:
		return "system"
	case KindUserControl:
		return "user-control"
	case KindUser:
		return "user"
	default:
		return "unknown"
	}
}

// 系统控制消息标记接口
type SystemMessage interface {
	SystemMsg()
}

// 用户协议控制消息标记接口
type UserControlMessage interface {
	UserControlMsg()
}

// 消息分类: 发送时执行一次, 入队后类别不再变化
func Classify(msg interface{}) Kind {
	switch msg.(type) {
	case SystemMessage:
		return KindSystem
	case UserControlMessage:
		return KindUserControl
	default:
		return KindUser
	}
}
