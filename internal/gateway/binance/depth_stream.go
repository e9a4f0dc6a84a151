package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/exbinance/internal/domain"
	"github.com/betbot/exbinance/internal/ports"
	"github.com/betbot/exbinance/pkg/sigchan"
	"github.com/betbot/exbinance/pkg/syncgroup"
)

const (
	defaultStreamHost = "wss://stream.binance.com:9443"

	// depth20@100ms：每 100ms 推送一次 20 档完整快照。
	// 快照式推送天然满足“逐事件整体替换”的缓存语义，不需要增量合并。
	depthStreamSuffix = "@depth20@100ms"
)

// DepthStream 组合流 WebSocket 客户端（信号驱动重连）。
// 每条消息是单个交易对的完整 20 档快照，按到达顺序串行交给 handler。
type DepthStream struct {
	host    string
	symbols []string

	conn   *websocket.Conn
	mu     sync.RWMutex
	closed bool

	handler ports.DepthUpdateHandler

	reconnectC     *sigchan.Chan
	reconnectDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	sg     *syncgroup.SyncGroup

	// stream 名（小写）-> 交易对（大写），用于把组合流 key 还原成 symbol
	streamToSymbol map[string]string

	log *logrus.Entry
}

// NewDepthStream 创建深度流客户端；host 为空时使用生产环境地址。
func NewDepthStream(host string, symbols []string) *DepthStream {
	if host == "" {
		host = defaultStreamHost
	}
	streamToSymbol := make(map[string]string, len(symbols))
	for _, s := range symbols {
		streamToSymbol[strings.ToLower(s)+depthStreamSuffix] = s
	}
	return &DepthStream{
		host:           host,
		symbols:        symbols,
		reconnectC:     sigchan.New(1),
		reconnectDelay: 5 * time.Second,
		sg:             syncgroup.NewSyncGroup(),
		streamToSymbol: streamToSymbol,
		log:            logrus.WithField("component", "depth_stream"),
	}
}

// Start 建立连接并开始推送快照。handler 在整个订阅生命周期内不变。
func (d *DepthStream) Start(ctx context.Context, handler ports.DepthUpdateHandler) error {
	if len(d.symbols) == 0 {
		return fmt.Errorf("深度流未配置任何交易对")
	}

	d.mu.Lock()
	d.handler = handler
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.mu.Unlock()

	if err := d.connect(); err != nil {
		return err
	}

	// 重连器只启动一次，之后由读循环发信号驱动
	d.sg.Go(func() {
		d.reconnector(d.ctx)
	})

	return nil
}

// connect 拨号 + 启动读循环（初次连接与重连共用）。
func (d *DepthStream) connect() error {
	streams := make([]string, 0, len(d.symbols))
	for _, s := range d.symbols {
		streams = append(streams, strings.ToLower(s)+depthStreamSuffix)
	}
	wsURL := d.host + "/stream?streams=" + strings.Join(streams, "/")

	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("连接深度流失败: %w", err)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		conn.Close()
		return fmt.Errorf("深度流已停止")
	}
	if d.conn != nil {
		d.conn.Close()
	}
	d.conn = conn
	d.mu.Unlock()

	d.sg.Go(func() {
		d.readLoop(d.ctx, conn)
	})

	d.log.Infof("深度流已连接: %d 个交易对", len(d.symbols))
	return nil
}

// Stop 停止订阅。可重复调用；Start 失败后调用也安全。
func (d *DepthStream) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	cancel := d.cancel
	conn := d.conn
	d.conn = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	d.sg.Wait()
	d.log.Info("深度流已停止")
}

func (d *DepthStream) reconnector(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.reconnectC.C():
			d.log.Warnf("收到深度流重连信号，冷却 %v...", d.reconnectDelay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.reconnectDelay):
			}

			if err := d.connect(); err != nil {
				d.log.Warnf("深度流重连失败: %v，将再次尝试...", err)
				d.reconnectC.Emit()
			}
		}
	}
}

// combinedStreamEvent 组合流外层信封。
type combinedStreamEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// partialDepthEvent depth20 快照载荷。档位为 [price, qty] 字符串对。
type partialDepthEvent struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

func (d *DepthStream) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			d.mu.RLock()
			closed := d.closed
			d.mu.RUnlock()
			if closed {
				return
			}
			d.log.Warnf("读取深度流失败: %v，将触发重连", err)
			d.reconnectC.Emit()
			return
		}

		var event combinedStreamEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			d.log.Warnf("解析组合流消息失败: %v", err)
			continue
		}

		symbol, ok := d.streamToSymbol[event.Stream]
		if !ok {
			// 非订阅流（订阅确认等），忽略
			continue
		}

		var depth partialDepthEvent
		if err := json.Unmarshal(event.Data, &depth); err != nil {
			d.log.Warnf("解析深度快照失败 %s: %v", symbol, err)
			continue
		}

		snapshot := &domain.OrderBookSnapshot{
			Symbol: symbol,
			Time:   time.Now(),
			Bids:   parseLevels(depth.Bids),
			Asks:   parseLevels(depth.Asks),
		}

		d.mu.RLock()
		handler := d.handler
		d.mu.RUnlock()
		if handler != nil {
			handler.OnDepthUpdate(snapshot)
		}
	}
}

func parseLevels(raw [][2]string) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(pair[1])
		if err != nil || size.IsZero() {
			continue
		}
		levels = append(levels, domain.PriceLevel{Price: price, Size: size})
	}
	return levels
}
