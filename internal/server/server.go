package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/exbinance/internal/domain"
	"github.com/betbot/exbinance/internal/services"
)

// Server 对外 HTTP API：把两个门面的操作 1:1 映射成路由。
// 读操作永不因上游故障失败（最多返回空快照）；/trade 是唯一会返回
// 业务错误的端点。
type Server struct {
	trading    *services.TradingFacade
	marketData *services.MarketDataFacade
	httpSrv    *http.Server
	log        *logrus.Entry
}

// New 创建 HTTP 服务。
func New(listenAddr string, trading *services.TradingFacade, marketData *services.MarketDataFacade) *Server {
	s := &Server{
		trading:    trading,
		marketData: marketData,
		log:        logrus.WithField("component", "http_server"),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	v1 := engine.Group("/api/v1")
	v1.GET("/name", s.handleName)
	v1.GET("/balances", s.handleBalances)
	v1.GET("/markets", s.handleMarkets)
	v1.GET("/markets/:symbol", s.handleMarket)
	v1.GET("/symbols", s.handleSymbols)
	v1.GET("/symbols/:symbol", s.handleHasSymbol)
	v1.GET("/orderbook/:symbol", s.handleOrderBook)
	v1.POST("/trade", s.handleTrade)

	s.httpSrv = &http.Server{Addr: listenAddr, Handler: engine}
	return s
}

// Start 启动监听（异步）。
func (s *Server) Start() {
	go func() {
		s.log.Infof("HTTP API 已启动: %s", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP API 退出: %v", err)
		}
	}()
}

// Stop 优雅关闭。
func (s *Server) Stop(ctx context.Context) {
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.log.Warnf("HTTP API 关闭失败: %v", err)
	}
}

func (s *Server) handleName(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"name": s.trading.GetName()})
}

type balancePayload struct {
	Asset   string          `json:"asset"`
	Balance decimal.Decimal `json:"balance"`
	Free    decimal.Decimal `json:"free"`
}

func (s *Server) handleBalances(c *gin.Context) {
	balances := s.trading.GetBalances()
	out := make([]balancePayload, 0, len(balances))
	for _, b := range balances {
		out = append(out, balancePayload{Asset: b.Asset, Balance: b.Balance, Free: b.Free})
	}
	c.JSON(http.StatusOK, gin.H{"balances": out})
}

type marketInfoPayload struct {
	Symbol         string          `json:"symbol"`
	BaseAsset      string          `json:"base_asset"`
	QuoteAsset     string          `json:"quote_asset"`
	PriceAccuracy  int             `json:"price_accuracy"`
	VolumeAccuracy int             `json:"volume_accuracy"`
	MinVolume      decimal.Decimal `json:"min_volume"`
}

func marketInfoToPayload(m domain.MarketInfo) marketInfoPayload {
	return marketInfoPayload{
		Symbol:         m.Symbol,
		BaseAsset:      m.BaseAsset,
		QuoteAsset:     m.QuoteAsset,
		PriceAccuracy:  m.PriceAccuracy,
		VolumeAccuracy: m.VolumeAccuracy,
		MinVolume:      m.MinVolume,
	}
}

func (s *Server) handleMarkets(c *gin.Context) {
	markets := s.trading.GetMarketInfoList()
	out := make([]marketInfoPayload, 0, len(markets))
	for _, m := range markets {
		out = append(out, marketInfoToPayload(m))
	}
	c.JSON(http.StatusOK, gin.H{"markets": out})
}

func (s *Server) handleMarket(c *gin.Context) {
	m, ok := s.trading.GetMarketInfo(c.Param("symbol"))
	if !ok {
		// 与 gRPC 原语义一致：未知 symbol 返回空结果，不是错误
		c.JSON(http.StatusOK, gin.H{"market": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"market": marketInfoToPayload(m)})
}

func (s *Server) handleSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": s.marketData.GetSymbols()})
}

func (s *Server) handleHasSymbol(c *gin.Context) {
	symbol := c.Param("symbol")
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "exists": s.marketData.HasSymbol(symbol)})
}

type priceLevelPayload struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

func (s *Server) handleOrderBook(c *gin.Context) {
	book, ok := s.marketData.GetOrderBook(c.Param("symbol"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "order book not found"})
		return
	}

	bids := make([]priceLevelPayload, 0, len(book.Bids))
	for _, l := range book.Bids {
		bids = append(bids, priceLevelPayload{Price: l.Price, Size: l.Size})
	}
	asks := make([]priceLevelPayload, 0, len(book.Asks))
	for _, l := range book.Asks {
		asks = append(asks, priceLevelPayload{Price: l.Price, Size: l.Size})
	}

	c.JSON(http.StatusOK, gin.H{
		"source":    s.marketData.GetName(),
		"symbol":    book.Symbol,
		"timestamp": book.Time.UnixMilli(),
		"bids":      bids,
		"asks":      asks,
	})
}

type tradeRequestPayload struct {
	Symbol      string          `json:"symbol" binding:"required"`
	Side        string          `json:"side" binding:"required"`
	Volume      decimal.Decimal `json:"volume" binding:"required"`
	ReferenceID string          `json:"reference_id"`
}

func (s *Server) handleTrade(c *gin.Context) {
	var payload tradeRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 市价单最坏情况阻塞约 5.5s，外加一点余量
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	result, err := s.trading.MarketTrade(ctx, &domain.TradeRequest{
		Symbol:      payload.Symbol,
		Side:        domain.Side(payload.Side),
		Volume:      payload.Volume,
		ReferenceID: payload.ReferenceID,
	})
	if err != nil {
		s.log.Errorf("市价单执行失败: %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reference_id": result.ReferenceID,
		"order_id":     result.OrderID,
		"symbol":       result.Symbol,
		"side":         result.Side,
		"volume":       result.Volume,
		"price":        result.Price,
		"timestamp":    result.Time.UnixMilli(),
		"source":       result.Source,
	})
}
