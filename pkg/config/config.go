package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 连接器运行配置。
// 优先级：环境变量 > 配置文件 > 默认值。
type Config struct {
	// 交易所 API 凭证
	APIKey    string
	APISecret string

	// Instruments 交易对白名单（已按分号拆分）
	Instruments []string

	// RefreshBalanceIntervalSec 余额稳态刷新间隔（秒）。
	// 首个刷新周期固定 1 秒（bootstrap），之后切换到该值。
	RefreshBalanceIntervalSec int

	// QuoteFeed 下游报价推送配置
	QuoteFeed QuoteFeedConfig

	// HTTPListenAddr 对外 API 监听地址
	HTTPListenAddr string

	// 日志
	LogLevel string
	LogFile  string
}

// QuoteFeedConfig 报价推送（TCP 文本流）配置。
type QuoteFeedConfig struct {
	// ListenAddr 为空时不启用推送
	ListenAddr string
	// InstrumentsMapping "BTCUSDT=BTCUSD;ETHUSDT=ETHUSD"，
	// 左边是交易所 symbol，右边是推送给下游的名字；未映射的 symbol 原样推送。
	InstrumentsMapping map[string]string
}

// configFile 配置文件结构（YAML）
type configFile struct {
	Exchange struct {
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
	} `yaml:"exchange"`
	Instruments               string `yaml:"instruments"`
	RefreshBalanceIntervalSec int    `yaml:"refresh_balance_interval_sec"`
	QuoteFeed                 struct {
		ListenAddr         string `yaml:"listen_addr"`
		InstrumentsMapping string `yaml:"instruments_mapping"`
	} `yaml:"quote_feed"`
	HTTPListenAddr string `yaml:"http_listen_addr"`
	LogLevel       string `yaml:"log_level"`
	LogFile        string `yaml:"log_file"`
}

// LoadFromFile 从 YAML 文件加载配置；filePath 为空时只读环境变量。
func LoadFromFile(filePath string) (*Config, error) {
	var cf configFile
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败 %s: %w", filePath, err)
		}
		if err := yaml.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("解析配置文件失败 %s: %w", filePath, err)
		}
	}

	cfg := &Config{
		APIKey:                    envOr("BINANCE_API_KEY", cf.Exchange.APIKey),
		APISecret:                 envOr("BINANCE_API_SECRET", cf.Exchange.APISecret),
		Instruments:               SplitInstruments(envOr("BINANCE_INSTRUMENTS", cf.Instruments)),
		RefreshBalanceIntervalSec: envIntOr("REFRESH_BALANCE_INTERVAL_SEC", cf.RefreshBalanceIntervalSec),
		QuoteFeed: QuoteFeedConfig{
			ListenAddr:         envOr("QUOTE_FEED_LISTEN_ADDR", cf.QuoteFeed.ListenAddr),
			InstrumentsMapping: ParseInstrumentsMapping(envOr("QUOTE_INSTRUMENTS_MAPPING", cf.QuoteFeed.InstrumentsMapping)),
		},
		HTTPListenAddr: envOr("HTTP_LISTEN_ADDR", cf.HTTPListenAddr),
		LogLevel:       envOr("LOG_LEVEL", cf.LogLevel),
		LogFile:        envOr("LOG_FILE", cf.LogFile),
	}

	if cfg.RefreshBalanceIntervalSec <= 0 {
		cfg.RefreshBalanceIntervalSec = 30
	}
	if cfg.HTTPListenAddr == "" {
		cfg.HTTPListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// Validate 校验交易必需项。
func (c *Config) Validate() error {
	if c.APIKey == "" || c.APISecret == "" {
		return fmt.Errorf("缺少交易所 API 凭证")
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("未配置任何交易对")
	}
	return nil
}

// SplitInstruments 按分号拆分交易对列表，忽略空段。
func SplitInstruments(s string) []string {
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseInstrumentsMapping 解析 "BTCUSDT=BTCUSD;ETHUSDT=ETHUSD" 形式的映射。
func ParseInstrumentsMapping(s string) map[string]string {
	mapping := make(map[string]string)
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		from := strings.TrimSpace(kv[0])
		to := strings.TrimSpace(kv[1])
		if from != "" && to != "" {
			mapping[from] = to
		}
	}
	return mapping
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
