package syncgroup

import "sync"

// SyncGroup sync.WaitGroup 的薄包装：Go 启动并跟踪一个 goroutine，
// Wait 等待全部退出。允许在运行中继续 Go（重连后补启动新的读循环）。
type SyncGroup struct {
	wg sync.WaitGroup
}

func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Go 启动 fn 并登记到组内；fn 为 nil 时忽略。
func (g *SyncGroup) Go(fn func()) {
	if fn == nil {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

// Wait 阻塞直到组内全部 goroutine 退出。
func (g *SyncGroup) Wait() {
	g.wg.Wait()
}
