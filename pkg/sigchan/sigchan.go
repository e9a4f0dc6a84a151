package sigchan

// Chan 电平触发的信号 channel：Emit 置位、消费方 select 消费，
// channel 满时的重复 Emit 被合并（信号不携带数据，丢弃是安全的）。
type Chan struct {
	c chan struct{}
}

// New 创建信号 channel，bufferSize 通常为 1。
func New(bufferSize int) *Chan {
	return &Chan{c: make(chan struct{}, bufferSize)}
}

// Emit 发出信号，非阻塞；已有未消费信号时合并。
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// C 返回用于 select 的接收端。
func (c *Chan) C() <-chan struct{} {
	return c.c
}
