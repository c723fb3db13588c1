package xproc

import "context"

type selfKeyType int

const selfKey selfKeyType = iota

// 把当前进程标识绑定到context中
// 显式传递调用方身份, 不依赖隐式的线程局部状态
func WithSelf(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, selfKey, id)
}

// context获取当前进程标识, 未绑定时返回None
func SelfFrom(ctx context.Context) ID {
	if ctx == nil {
		return None
	}
	if id, ok := ctx.Value(selfKey).(ID); ok {
		return id
	}
	return None
}
