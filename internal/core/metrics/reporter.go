package metrics

// Reporter 控制器使用的指标记录接口
type Reporter interface {
	// PackSent 记录一次数据包发送
	PackSent(bytes int)

	// PackReceived 记录一次数据包接收
	PackReceived(bytes int)

	// DecodeFailed 记录一次解码失败
	DecodeFailed()

	// Unhandled 记录一个无人认领的对象
	Unhandled()

	// GatedDrop 记录一个因未认证而被丢弃的对象
	GatedDrop()
}

// Nop 丢弃所有指标
type Nop struct{}

var _ Reporter = Nop{}

func (Nop) PackSent(int)     {}
func (Nop) PackReceived(int) {}
func (Nop) DecodeFailed()    {}
func (Nop) Unhandled()       {}
func (Nop) GatedDrop()       {}
