package services

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/exbinance/internal/gateway"
)

func seedMarketData(gw *mockGateway) {
	gw.symbolFilters = []gateway.SymbolFilters{
		{Symbol: "BTCUSDT", PriceIncrement: "0.01000000", QuantityIncrement: "0.00001000", MinQuantity: "0.00001000"},
		{Symbol: "ETHUSDT", PriceIncrement: "0.01000000", QuantityIncrement: "0.00010000", MinQuantity: "0.00010000"},
	}
	gw.marginPairs = []gateway.MarginPair{
		{Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT"},
		{Symbol: "ETHUSDT", Base: "ETH", Quote: "USDT"},
	}
}

func TestBalanceCache_FiltersToAssetUniverse(t *testing.T) {
	gw := newMockGateway()
	seedMarketData(gw)
	gw.balances = []gateway.AssetBalance{
		{Asset: "BTC", Free: decimal.RequireFromString("1.5")},
		{Asset: "USDT", Free: decimal.NewFromInt(1000)},
		{Asset: "DOGE", Free: decimal.NewFromInt(9999)}, // 宇宙之外
	}
	gw.borrowables["BTC"] = decimal.NewFromInt(2)
	gw.borrowables["USDT"] = decimal.NewFromInt(5000)

	markets := NewMarketCache(gw, []string{"BTCUSDT"})
	cache := NewBalanceCache(gw, markets, time.Minute)
	cache.Refresh(context.Background())

	balances := cache.GetBalances()
	if len(balances) != 2 {
		t.Fatalf("balances got=%d want=2: %+v", len(balances), balances)
	}
	// 排序后 BTC 在前
	if balances[0].Asset != "BTC" || balances[1].Asset != "USDT" {
		t.Fatalf("unexpected assets: %+v", balances)
	}
	if !balances[0].Balance.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("BTC balance got=%s want=1.5", balances[0].Balance)
	}
	if !balances[0].Free.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("BTC free got=%s want=2", balances[0].Free)
	}
	// 白名单外的 DOGE 绝不出现
	for _, b := range balances {
		if b.Asset == "DOGE" {
			t.Fatalf("DOGE must not appear in snapshot")
		}
	}
}

func TestBalanceCache_FetchFailureKeepsOldSnapshot(t *testing.T) {
	gw := newMockGateway()
	seedMarketData(gw)
	gw.balances = []gateway.AssetBalance{{Asset: "BTC", Free: decimal.NewFromInt(1)}}
	gw.borrowables["BTC"] = decimal.NewFromInt(2)

	markets := NewMarketCache(gw, []string{"BTCUSDT"})
	cache := NewBalanceCache(gw, markets, time.Minute)
	cache.Refresh(context.Background())
	if len(cache.GetBalances()) != 1 {
		t.Fatalf("expected 1 balance after first refresh")
	}

	// 整体拉取失败：旧快照继续服务
	gw.balancesErr = errors.New("503 service unavailable")
	cache.Refresh(context.Background())
	if len(cache.GetBalances()) != 1 {
		t.Fatalf("old snapshot must survive fetch failure")
	}
}

func TestBalanceCache_BorrowableFailureOmitsAsset(t *testing.T) {
	gw := newMockGateway()
	seedMarketData(gw)
	gw.balances = []gateway.AssetBalance{
		{Asset: "BTC", Free: decimal.NewFromInt(1)},
		{Asset: "USDT", Free: decimal.NewFromInt(100)},
	}
	gw.borrowables["BTC"] = decimal.NewFromInt(2)
	gw.borrowableErr["USDT"] = errors.New("margin unavailable")

	markets := NewMarketCache(gw, []string{"BTCUSDT"})
	cache := NewBalanceCache(gw, markets, time.Minute)
	cache.Refresh(context.Background())

	balances := cache.GetBalances()
	// 单资产失败只省略该资产，刷新不中断
	if len(balances) != 1 || balances[0].Asset != "BTC" {
		t.Fatalf("expected only BTC, got %+v", balances)
	}
}

func TestBalanceCache_RefreshDrivesMetadataRetry(t *testing.T) {
	gw := newMockGateway()
	gw.filtersErr = errors.New("timeout")
	gw.balances = []gateway.AssetBalance{{Asset: "BTC", Free: decimal.NewFromInt(1)}}
	gw.borrowables["BTC"] = decimal.NewFromInt(2)

	markets := NewMarketCache(gw, []string{"BTCUSDT"})
	cache := NewBalanceCache(gw, markets, time.Minute)

	// 首轮元数据失败：资产宇宙为空，余额全部被过滤
	cache.Refresh(context.Background())
	if len(cache.GetBalances()) != 0 {
		t.Fatalf("expected empty snapshot while metadata missing")
	}

	// 上游恢复，下一轮由余额刷新带动元数据重试
	gw.filtersErr = nil
	seedMarketData(gw)
	cache.Refresh(context.Background())
	if len(cache.GetBalances()) != 1 {
		t.Fatalf("expected BTC after metadata recovered, got %+v", cache.GetBalances())
	}
}

func TestBalanceCache_StartStop(t *testing.T) {
	gw := newMockGateway()
	seedMarketData(gw)
	markets := NewMarketCache(gw, []string{"BTCUSDT"})
	cache := NewBalanceCache(gw, markets, time.Minute)

	cache.Start(context.Background())
	cache.Stop()
	cache.Stop() // 重复 Stop 安全
}
