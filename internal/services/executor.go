package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/exbinance/internal/domain"
	"github.com/betbot/exbinance/internal/gateway"
)

var (
	// ErrOrderNotFilled 市价单被找到但不是 FILLED 终态。
	// 市价单要么立即全部成交要么失败，出现其它状态说明交易所状态不一致，
	// 作为执行错误上报，不重试。
	ErrOrderNotFilled = errors.New("market order is not FILLED")

	// ErrConfirmationNotObserved 在轮询预算内始终没有查到订单。
	ErrConfirmationNotObserved = errors.New("cannot find executed order within wait budget")
)

// TradeExecutor 市价单执行器。
//
// 每个 reference id 至多提交一次真实订单：先按 client id 查单（幂等检查），
// 不存在才提交，然后在有限预算内轮询确认成交，最后翻译成规范化 TradeResult。
//
// 并发契约：同一 reference id 的并发调用不做进程内互斥，正确性依赖交易所
// 对重复 client order id 的去重；不同 reference id 的调用完全并行。
type TradeExecutor struct {
	gw      gateway.Gateway
	markets *MarketCache

	budget PollBudget

	// 时间函数可注入，测试换成虚拟时钟
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	log *logrus.Entry
}

// NewTradeExecutor 创建执行器，使用默认轮询预算（500ms × 5000ms）。
func NewTradeExecutor(gw gateway.Gateway, markets *MarketCache) *TradeExecutor {
	return &TradeExecutor{
		gw:      gw,
		markets: markets,
		budget:  DefaultPollBudget,
		now:     time.Now,
		sleep:   sleepCtx,
		log:     logrus.WithField("component", "trade_executor"),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MarketTrade 执行一笔市价单请求，最坏情况阻塞约 预算+一个轮询间隔。
func (e *TradeExecutor) MarketTrade(ctx context.Context, req *domain.TradeRequest) (*domain.TradeResult, error) {
	if req == nil {
		return nil, errors.New("nil trade request")
	}
	if !req.Side.IsValid() {
		return nil, errors.Errorf("invalid side: %q", req.Side)
	}

	refID := req.ReferenceID
	if refID == "" {
		// 与上游约定一致的无连字符格式；生成后即是唯一的幂等键
		refID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	log := e.log.WithFields(logrus.Fields{"symbol": req.Symbol, "ref_id": refID})
	log.Infof("市价单请求: side=%s volume=%s", req.Side, req.Volume)

	// Step 1 幂等检查：已存在则直接翻译返回，绝不重复提交。
	// 注意 fail-closed：检查因无关原因失败时直接上报错误而不是盲目提交，
	// 否则无法排除重复下单的可能。
	switch lookup := e.gw.GetOrderByClientID(ctx, req.Symbol, refID); lookup.State {
	case gateway.LookupFound:
		log.Infof("订单已存在，按幂等语义返回: status=%s", lookup.Order.Status)
		return e.translateOrder(lookup.Order)
	case gateway.LookupFailed:
		return nil, errors.Wrap(lookup.Err, "idempotency check failed")
	case gateway.LookupAbsent:
		// 正常路径：继续提交
	}

	// Step 2 提交
	if err := e.gw.PlaceMarketOrder(ctx, req.Symbol, req.Side, req.Volume.Abs(), refID); err != nil {
		return nil, errors.Wrap(err, "place market order")
	}
	log.Info("市价单已提交，开始确认轮询")

	// Step 3 确认轮询：固定间隔 + 总预算
	start := e.now()
	for attempt := 1; e.budget.ShouldContinue(e.now().Sub(start)); attempt++ {
		switch lookup := e.gw.GetOrderByClientID(ctx, req.Symbol, refID); lookup.State {
		case gateway.LookupFound:
			if lookup.Order.Status != gateway.OrderStatusFilled {
				log.Errorf("市价单非 FILLED 终态: status=%s", lookup.Order.Status)
				return nil, errors.Wrapf(ErrOrderNotFilled, "status %s", lookup.Order.Status)
			}
			log.Infof("订单确认成交: attempts=%d", attempt)
			return e.translateOrder(lookup.Order)
		case gateway.LookupFailed:
			return nil, errors.Wrap(lookup.Err, "confirmation poll failed")
		case gateway.LookupAbsent:
			// 尚未可见，等下一轮
		}

		// 失败的尝试后固定等一个间隔再重查；预算耗尽由循环条件判定，
		// 保证总等待不少于完整预算（最坏约 预算+一个间隔）
		if err := e.sleep(ctx, e.budget.Interval); err != nil {
			return nil, err
		}
	}

	log.Error("确认轮询预算耗尽，未观测到订单")
	return nil, ErrConfirmationNotObserved
}

// translateOrder 把交易所成交记录翻译成规范化 TradeResult。
//
// 成交均价 = 累计成交额 / 累计成交量，市场元数据可用时按价格精度做
// 银行家舍入；元数据尚未加载（冷启动首笔交易）时保留原始值不舍入。
func (e *TradeExecutor) translateOrder(order *gateway.MarginOrder) (*domain.TradeResult, error) {
	if order == nil {
		return nil, errors.New("cannot read nil order")
	}
	if order.ExecutedQty.IsZero() {
		return nil, errors.Errorf("order %s has zero executed quantity", order.ClientOrderID)
	}

	price := order.CummulativeQuoteQty.Div(order.ExecutedQty)
	if m, ok := e.markets.GetMarket(order.Symbol); ok {
		price = price.RoundBank(int32(m.PriceAccuracy))
	}

	side := domain.SideSell
	volume := order.ExecutedQty.Neg()
	if order.Side == string(domain.SideBuy) {
		side = domain.SideBuy
		volume = order.ExecutedQty
	}

	return &domain.TradeResult{
		ReferenceID: order.ClientOrderID,
		OrderID:     strconv.FormatInt(order.OrderID, 10),
		Symbol:      order.Symbol,
		Side:        side,
		Volume:      volume,
		Price:       price,
		Time:        time.UnixMilli(order.UpdateTime),
		Source:      e.gw.Name(),
	}, nil
}
