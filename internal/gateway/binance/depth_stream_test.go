package binance

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseLevels(t *testing.T) {
	levels := parseLevels([][2]string{
		{"30000.50", "1.5"},
		{"30000.40", "0.00000000"}, // 零数量档位剔除
		{"bad", "1"},               // 坏数据跳过
		{"29999.90", "2"},
	})
	if len(levels) != 2 {
		t.Fatalf("levels got=%d want=2: %+v", len(levels), levels)
	}
	if !levels[0].Price.Equal(decimal.RequireFromString("30000.50")) {
		t.Fatalf("price got=%s", levels[0].Price)
	}
	if !levels[1].Size.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("size got=%s", levels[1].Size)
	}
}

func TestNewDepthStream_StreamNames(t *testing.T) {
	d := NewDepthStream("", []string{"BTCUSDT", "ETHUSDT"})
	if d.host != defaultStreamHost {
		t.Fatalf("host got=%s", d.host)
	}
	// 组合流 key 小写 + 固定后缀，可还原回大写 symbol
	if got := d.streamToSymbol["btcusdt@depth20@100ms"]; got != "BTCUSDT" {
		t.Fatalf("stream mapping got=%s want=BTCUSDT", got)
	}
	if got := d.streamToSymbol["ethusdt@depth20@100ms"]; got != "ETHUSDT" {
		t.Fatalf("stream mapping got=%s want=ETHUSDT", got)
	}
}
