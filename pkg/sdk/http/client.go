package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

type Client struct {
	client *resty.Client
}

func NewClient(host string) *Client {
	if strings.HasSuffix(host, "/") {
		host = host[:len(host)-1]
	}

	// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY）
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			// 交易所限流时优先尊重 Retry-After 头
			if resp.StatusCode() == http.StatusTooManyRequests {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return seconds, nil
					}
				}
				return 10 * time.Second, nil
			}
			return 0, nil
		})

	return &Client{client: client}
}

type RequestOptions struct {
	Headers map[string]string
	// QueryString 原样附加到 URL（签名接口要求 query 与签名字节一致，
	// 不能交给序列化层重排）。
	QueryString string
	Data        any
}

// 仅设置本次请求的默认 Header（不要再改 client 级 Header）
func (c *Client) newRequest(ctx context.Context) *resty.Request {
	r := c.client.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "application/json")
	r.SetHeader("Connection", "keep-alive")
	return r
}

func (c *Client) DoRequest(ctx context.Context, method, endpoint string, opt *RequestOptions, out any) (*resty.Response, error) {
	rc := c.newRequest(ctx)
	if opt != nil {
		for k, v := range opt.Headers {
			rc.SetHeader(k, v)
		}
		if opt.QueryString != "" {
			rc.SetQueryString(opt.QueryString)
		}
		if opt.Data != nil {
			rc.SetHeader("Content-Type", "application/json")
			rc.SetBody(opt.Data)
		}
	}
	if out != nil {
		rc.SetResult(out)
	}

	switch strings.ToUpper(method) {
	case http.MethodGet:
		return rc.Get(endpoint)
	case http.MethodPost:
		return rc.Post(endpoint)
	case http.MethodDelete:
		return rc.Delete(endpoint)
	case http.MethodPut:
		return rc.Put(endpoint)
	default:
		return nil, fmt.Errorf("unsupported method: %s", method)
	}
}

// APIError 交易所业务错误（HTTP 非 2xx 时从响应体解出来的 code/msg）。
type APIError struct {
	HTTPStatus int    `json:"-"`
	Code       int    `json:"code"`
	Msg        string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%d msg=%q", e.HTTPStatus, e.Code, e.Msg)
}

// ParseResponse 统一把非 2xx 响应转成 *APIError；传输层错误原样返回。
func ParseResponse(resp *resty.Response, err error) error {
	if err != nil {
		return errors.Wrap(err, "http request failed")
	}
	if resp.IsSuccess() {
		return nil
	}
	apiErr := &APIError{HTTPStatus: resp.StatusCode()}
	if jsonErr := json.Unmarshal(resp.Body(), apiErr); jsonErr != nil {
		apiErr.Msg = string(resp.Body())
	}
	return apiErr
}

// AsAPIError 解包出 *APIError（含 errors.Wrap 链）。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
