package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeTempConfig(t, `
exchange:
  api_key: key-from-file
  api_secret: secret-from-file
instruments: "BTCUSDT;ETHUSDT"
refresh_balance_interval_sec: 60
quote_feed:
  listen_addr: ":9999"
  instruments_mapping: "BTCUSDT=BTCUSD;ETHUSDT=ETHUSD"
http_listen_addr: ":8081"
log_level: debug
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "key-from-file", cfg.APIKey)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Instruments)
	assert.Equal(t, 60, cfg.RefreshBalanceIntervalSec)
	assert.Equal(t, ":9999", cfg.QuoteFeed.ListenAddr)
	assert.Equal(t, "BTCUSD", cfg.QuoteFeed.InstrumentsMapping["BTCUSDT"])
	assert.Equal(t, ":8081", cfg.HTTPListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
exchange:
  api_key: key-from-file
instruments: "BTCUSDT"
`)
	t.Setenv("BINANCE_API_KEY", "key-from-env")
	t.Setenv("BINANCE_INSTRUMENTS", "ETHUSDT;XRPUSDT")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	// 环境变量 > 配置文件
	assert.Equal(t, "key-from-env", cfg.APIKey)
	assert.Equal(t, []string{"ETHUSDT", "XRPUSDT"}, cfg.Instruments)
}

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile("")
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.RefreshBalanceIntervalSec)
	assert.Equal(t, ":8080", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.QuoteFeed.ListenAddr) // 未配置时不启用推送
}

func TestValidate(t *testing.T) {
	cfg := &Config{APIKey: "k", APISecret: "s", Instruments: []string{"BTCUSDT"}}
	assert.NoError(t, cfg.Validate())

	noKey := *cfg
	noKey.APIKey = ""
	assert.Error(t, noKey.Validate())

	noInstruments := *cfg
	noInstruments.Instruments = nil
	assert.Error(t, noInstruments.Validate())
}

func TestSplitInstruments(t *testing.T) {
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, SplitInstruments("BTCUSDT;ETHUSDT"))
	assert.Equal(t, []string{"BTCUSDT"}, SplitInstruments(" BTCUSDT ; ;"))
	assert.Empty(t, SplitInstruments(""))
}

func TestParseInstrumentsMapping(t *testing.T) {
	m := ParseInstrumentsMapping("BTCUSDT=BTCUSD;ETHUSDT=ETHUSD")
	assert.Equal(t, map[string]string{"BTCUSDT": "BTCUSD", "ETHUSDT": "ETHUSD"}, m)

	assert.Empty(t, ParseInstrumentsMapping(""))
	// 缺失 '=' 的段忽略
	assert.Empty(t, ParseInstrumentsMapping("BTCUSDT"))
}
