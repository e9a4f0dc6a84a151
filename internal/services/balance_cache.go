package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/exbinance/internal/domain"
	"github.com/betbot/exbinance/internal/gateway"
)

// DefaultBootstrapInterval 首个刷新周期的间隔：尽快完成冷启动填充，
// 之后切换到配置的稳态间隔。
const DefaultBootstrapInterval = 1 * time.Second

// BalanceCache 账户余额缓存。
//
// 定时刷新 margin 余额，只保留元数据缓存资产宇宙内的资产，并为每个资产
// 补充最大可借额度。刷新周期串行（单 goroutine 驱动），新快照整体替换
// 旧快照，读者永远看到完整的旧快照或新快照。
type BalanceCache struct {
	gw      gateway.Gateway
	markets *MarketCache

	bootstrapInterval time.Duration
	steadyInterval    time.Duration

	mu       sync.RWMutex
	balances map[string]domain.Balance

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	log *logrus.Entry
}

// NewBalanceCache 创建余额缓存；steadyInterval 是稳态刷新间隔。
func NewBalanceCache(gw gateway.Gateway, markets *MarketCache, steadyInterval time.Duration) *BalanceCache {
	return &BalanceCache{
		gw:                gw,
		markets:           markets,
		bootstrapInterval: DefaultBootstrapInterval,
		steadyInterval:    steadyInterval,
		balances:          make(map[string]domain.Balance),
		stopCh:            make(chan struct{}),
		log:               logrus.WithField("component", "balance_cache"),
	}
}

// Start 启动后台刷新任务。
func (c *BalanceCache) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.refreshLoop(ctx)
	c.log.Infof("余额刷新任务已启动: bootstrap=%v steady=%v", c.bootstrapInterval, c.steadyInterval)
}

// Stop 停止后台刷新任务并等待退出。可重复调用。
func (c *BalanceCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
}

func (c *BalanceCache) refreshLoop(ctx context.Context) {
	defer c.wg.Done()

	// 首个周期用短间隔做冷启动填充，触发后切到稳态间隔
	timer := time.NewTimer(c.bootstrapInterval)
	defer timer.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			c.Refresh(ctx)
			timer.Reset(c.steadyInterval)
		}
	}
}

// Refresh 执行一轮余额刷新。
//
// 流程：元数据刷新（已填充时为 no-op）-> 拉取 margin 余额 -> 过滤到资产
// 宇宙 -> 逐资产补充可借额度。整体拉取失败保留旧快照只记日志；单个资产
// 可借额度失败只省略该资产，不中断整轮刷新。
func (c *BalanceCache) Refresh(ctx context.Context) {
	c.markets.Refresh(ctx)

	balances, err := c.gw.FetchMarginBalances(ctx)
	if err != nil {
		// 可恢复：下个周期重试，旧快照继续服务读请求
		c.log.Errorf("拉取账户余额失败: %v", err)
		return
	}

	universe := c.markets.AssetUniverse()

	next := make(map[string]domain.Balance)
	for _, b := range balances {
		if _, ok := universe[b.Asset]; !ok {
			continue
		}

		free, err := c.gw.FetchMaxBorrowable(ctx, b.Asset)
		if err != nil {
			// 单资产失败：省略该资产，刷新继续
			c.log.Errorf("拉取 %s 可借额度失败: %v", b.Asset, err)
			continue
		}

		next[b.Asset] = domain.Balance{
			Asset:   b.Asset,
			Balance: b.Free,
			Free:    free,
		}
	}

	c.mu.Lock()
	c.balances = next
	c.mu.Unlock()

	c.log.Debugf("余额已刷新: %d 个资产", len(next))
}

// GetBalances 返回当前快照（按资产排序的副本），不阻塞。
func (c *BalanceCache) GetBalances() []domain.Balance {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Balance, 0, len(c.balances))
	for _, b := range c.balances {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}
