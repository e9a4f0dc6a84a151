package services

import "time"

// PollBudget 固定间隔 + 总预算的轮询调度。
//
// 用纯函数描述“已耗时 -> 是否继续”，不依赖墙钟副作用，便于用虚拟时钟
// 测试轮询逻辑。
type PollBudget struct {
	Interval time.Duration // 单次轮询间隔
	Budget   time.Duration // 总等待预算
}

// DefaultPollBudget 市价单确认轮询的默认预算：500ms × 5000ms。
var DefaultPollBudget = PollBudget{
	Interval: 500 * time.Millisecond,
	Budget:   5 * time.Second,
}

// ShouldContinue 判断在已耗时 elapsed 的情况下是否还允许下一次尝试。
// 与原始倒计数语义一致：预算耗尽的那一次仍然尝试（含边界）。
func (p PollBudget) ShouldContinue(elapsed time.Duration) bool {
	return elapsed <= p.Budget
}

// MaxAttempts 返回预算内的最大尝试次数（首次尝试不等待）。
func (p PollBudget) MaxAttempts() int {
	if p.Interval <= 0 {
		return 1
	}
	return int(p.Budget/p.Interval) + 1
}
