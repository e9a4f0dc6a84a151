package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/betbot/exbinance/internal/gateway/binance"
	"github.com/betbot/exbinance/internal/ports"
	"github.com/betbot/exbinance/internal/server"
	"github.com/betbot/exbinance/internal/services"
	"github.com/betbot/exbinance/internal/sink"
	"github.com/betbot/exbinance/pkg/config"
	"github.com/betbot/exbinance/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（YAML）")
	flag.Parse()

	// .env 可选：环境变量优先于配置文件
	if err := godotenv.Load(); err != nil {
		logrus.Debug("未找到 .env 文件，使用系统环境变量")
	}

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{Level: cfg.LogLevel, OutputFile: cfg.LogFile}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		logrus.Errorf("配置校验失败: %v", err)
		os.Exit(1)
	}

	logrus.Infof("连接器启动: instruments=%v refresh_interval=%ds", cfg.Instruments, cfg.RefreshBalanceIntervalSec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := binance.NewClient(cfg.APIKey, cfg.APISecret, "")

	// 固定启动顺序：元数据 → 余额 → 订单簿 → 对外接口。
	// 元数据首刷失败不阻断启动，余额定时器每轮都会先补一次。
	markets := services.NewMarketCache(gw, cfg.Instruments)
	markets.Refresh(ctx)

	balances := services.NewBalanceCache(gw, markets, time.Duration(cfg.RefreshBalanceIntervalSec)*time.Second)
	balances.Start(ctx)

	var quoteSink ports.QuoteSink
	if cfg.QuoteFeed.ListenAddr != "" {
		tcpSink := sink.NewTCPQuoteSink(cfg.QuoteFeed.ListenAddr, cfg.QuoteFeed.InstrumentsMapping)
		if err := tcpSink.Start(); err != nil {
			logrus.Errorf("启动报价推送失败: %v", err)
			os.Exit(1)
		}
		quoteSink = tcpSink
	}

	stream := binance.NewDepthStream("", cfg.Instruments)
	books := services.NewOrderBookCache(stream, quoteSink)
	if err := books.Start(ctx); err != nil {
		logrus.Errorf("启动订单簿订阅失败: %v", err)
		os.Exit(1)
	}

	executor := services.NewTradeExecutor(gw, markets)
	trading := services.NewTradingFacade(binance.Name, markets, balances, executor)
	marketData := services.NewMarketDataFacade(binance.Name, markets, books)

	httpSrv := server.New(cfg.HTTPListenAddr, trading, marketData)
	httpSrv.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logrus.Infof("收到信号 %v，开始优雅关闭", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpSrv.Stop(shutdownCtx)
	books.Stop()
	balances.Stop()
	cancel()

	logrus.Info("连接器已退出")
}
