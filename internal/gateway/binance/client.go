package binance

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/exbinance/internal/domain"
	"github.com/betbot/exbinance/internal/gateway"
	sdkhttp "github.com/betbot/exbinance/pkg/sdk/http"
)

const (
	// Name 交易所标识，透传到 TradeResult.Source 与对外的 GetName。
	Name = "binance"

	defaultRestHost = "https://api.binance.com"

	// codeUnknownOrder 交易所的 "Order does not exist" 业务码。
	// 幂等检查与确认轮询把它当作正常的 Absent 状态，不是失败。
	codeUnknownOrder = -2013

	headerAPIKey = "X-MBX-APIKEY"

	recvWindowMs = 5000
)

// Client Binance margin REST 客户端（gateway.Gateway 的具体实现）。
type Client struct {
	httpc  *sdkhttp.Client
	apiKey string
	secret string
	now    func() time.Time
}

var _ gateway.Gateway = (*Client)(nil)

// NewClient 创建 REST 客户端；host 为空时使用生产环境地址。
func NewClient(apiKey, secret, host string) *Client {
	if host == "" {
		host = defaultRestHost
	}
	return &Client{
		httpc:  sdkhttp.NewClient(host),
		apiKey: apiKey,
		secret: secret,
		now:    time.Now,
	}
}

func (c *Client) Name() string {
	return Name
}

// signedQuery 生成带 timestamp/recvWindow/signature 的 query string。
// url.Values.Encode 按 key 排序，签名必须覆盖排序后的同一串字节。
func (c *Client) signedQuery(params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.Itoa(recvWindowMs))
	payload := params.Encode()
	return payload + "&signature=" + sign(c.secret, payload)
}

func (c *Client) keyedHeaders() map[string]string {
	return map[string]string{headerAPIKey: c.apiKey}
}

// FetchSymbolFilters 拉取 symbol 字典（公共接口，无需签名）。
func (c *Client) FetchSymbolFilters(ctx context.Context) ([]gateway.SymbolFilters, error) {
	var out exchangeInfoResponse
	resp, err := c.httpc.DoRequest(ctx, "GET", "/api/v3/exchangeInfo", nil, &out)
	if err := sdkhttp.ParseResponse(resp, err); err != nil {
		return nil, errors.Wrap(err, "fetch exchange info")
	}

	filters := make([]gateway.SymbolFilters, 0, len(out.Symbols))
	for _, s := range out.Symbols {
		f := gateway.SymbolFilters{Symbol: s.Symbol}
		for _, flt := range s.Filters {
			switch flt.FilterType {
			case filterTypePrice:
				f.PriceIncrement = flt.TickSize
			case filterTypeLotSize:
				f.QuantityIncrement = flt.StepSize
				f.MinQuantity = flt.MinQty
			}
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// FetchMarginPairs 拉取全部 margin 交易对（需要 API key，不需要签名）。
func (c *Client) FetchMarginPairs(ctx context.Context) ([]gateway.MarginPair, error) {
	var out []marginPairPayload
	resp, err := c.httpc.DoRequest(ctx, "GET", "/sapi/v1/margin/allPairs", &sdkhttp.RequestOptions{
		Headers: c.keyedHeaders(),
	}, &out)
	if err := sdkhttp.ParseResponse(resp, err); err != nil {
		return nil, errors.Wrap(err, "fetch margin pairs")
	}

	pairs := make([]gateway.MarginPair, 0, len(out))
	for _, p := range out {
		pairs = append(pairs, gateway.MarginPair{Symbol: p.Symbol, Base: p.Base, Quote: p.Quote})
	}
	return pairs, nil
}

// FetchMarginBalances 拉取 margin 账户全部资产余额。
func (c *Client) FetchMarginBalances(ctx context.Context) ([]gateway.AssetBalance, error) {
	var out marginAccountResponse
	resp, err := c.httpc.DoRequest(ctx, "GET", "/sapi/v1/margin/account", &sdkhttp.RequestOptions{
		Headers:     c.keyedHeaders(),
		QueryString: c.signedQuery(nil),
	}, &out)
	if err := sdkhttp.ParseResponse(resp, err); err != nil {
		return nil, errors.Wrap(err, "fetch margin account")
	}

	balances := make([]gateway.AssetBalance, 0, len(out.UserAssets))
	for _, a := range out.UserAssets {
		balances = append(balances, gateway.AssetBalance{Asset: a.Asset, Free: a.Free})
	}
	return balances, nil
}

// FetchMaxBorrowable 查询单个资产的最大可借额度。
func (c *Client) FetchMaxBorrowable(ctx context.Context, asset string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("asset", asset)

	var out maxBorrowableResponse
	resp, err := c.httpc.DoRequest(ctx, "GET", "/sapi/v1/margin/maxBorrowable", &sdkhttp.RequestOptions{
		Headers:     c.keyedHeaders(),
		QueryString: c.signedQuery(params),
	}, &out)
	if err := sdkhttp.ParseResponse(resp, err); err != nil {
		return decimal.Zero, errors.Wrapf(err, "fetch max borrowable for %s", asset)
	}
	return out.Amount, nil
}

// PlaceMarketOrder 提交 margin 市价单，clientOrderID 作为交易所侧的幂等标签。
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity decimal.Decimal, clientOrderID string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", "MARKET")
	params.Set("quantity", quantity.Abs().String())
	params.Set("newClientOrderId", clientOrderID)

	var out marginOrderPayload
	resp, err := c.httpc.DoRequest(ctx, "POST", "/sapi/v1/margin/order", &sdkhttp.RequestOptions{
		Headers:     c.keyedHeaders(),
		QueryString: c.signedQuery(params),
	}, &out)
	if err := sdkhttp.ParseResponse(resp, err); err != nil {
		return errors.Wrapf(err, "place market order %s %s", symbol, side)
	}
	return nil
}

// GetOrderByClientID 按 (symbol, client order id) 查单。
// "-2013 Order does not exist" 映射为 Absent，其它错误映射为 Failed。
func (c *Client) GetOrderByClientID(ctx context.Context, symbol, clientOrderID string) gateway.OrderLookup {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("origClientOrderId", clientOrderID)

	var out marginOrderPayload
	resp, err := c.httpc.DoRequest(ctx, "GET", "/sapi/v1/margin/order", &sdkhttp.RequestOptions{
		Headers:     c.keyedHeaders(),
		QueryString: c.signedQuery(params),
	}, &out)
	if err := sdkhttp.ParseResponse(resp, err); err != nil {
		if apiErr, ok := sdkhttp.AsAPIError(err); ok && apiErr.Code == codeUnknownOrder {
			return gateway.AbsentOrder()
		}
		return gateway.FailedLookup(errors.Wrapf(err, "get order by client id %s/%s", symbol, clientOrderID))
	}

	return gateway.FoundOrder(&gateway.MarginOrder{
		Symbol:              out.Symbol,
		OrderID:             out.OrderID,
		ClientOrderID:       out.ClientOrderID,
		Side:                out.Side,
		Status:              out.Status,
		ExecutedQty:         out.ExecutedQty,
		CummulativeQuoteQty: out.CummulativeQuoteQty,
		UpdateTime:          out.UpdateTime,
	})
}
