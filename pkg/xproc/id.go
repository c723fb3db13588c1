package xproc

// 进程标识: 不可变, 可比较(结构相等), 可作为map key
// 零值表示"无目标"
type ID struct {
	v string
}

// None 空目标
var None = ID{}

func NewID(v string) ID {
	return ID{v: v}
}

func (id ID) IsNone() bool {
	return id.v == ""
}

func (id ID) String() string {
	if id.v == "" {
		return "<none>"
	}
	return id.v
}
