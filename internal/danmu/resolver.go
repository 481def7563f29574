package danmu

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wsx864321/danmu/pkg/log"
	"github.com/wsx864321/danmu/pkg/xerr"
)

// Resolver 将直播间引用解析为握手所需的房间上下文，不打开长连接。
// 任一必需标识为 0 时返回 xerr.ErrRoomUnresolved。
type Resolver interface {
	Resolve(ctx context.Context, ch ChannelRef) (RoomContext, error)
}

// ResolverFunc 函数适配器
type ResolverFunc func(ctx context.Context, ch ChannelRef) (RoomContext, error)

func (f ResolverFunc) Resolve(ctx context.Context, ch ChannelRef) (RoomContext, error) {
	return f(ctx, ch)
}

// HTTPClient 注入给 Resolver 的 HTTP 能力，无会话亲和，可并发使用
type HTTPClient interface {
	Get(ctx context.Context, url string, headers map[string]string) (status int, body []byte, err error)
}

const maxPageSize = 8 << 20

// HTTPOption HTTP 客户端选项
type HTTPOption func(*httpClient)

// WithHTTPTimeout 单次请求超时
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(c *httpClient) {
		c.client.Timeout = d
	}
}

// WithBreaker 连续失败 failures 次后熔断该 host，open 持续 timeout
func WithBreaker(failures uint32, timeout time.Duration) HTTPOption {
	return func(c *httpClient) {
		c.breakerFailures = failures
		c.breakerTimeout = timeout
	}
}

// WithRoundTripper 替换底层 Transport，测试时使用
func WithRoundTripper(rt http.RoundTripper) HTTPOption {
	return func(c *httpClient) {
		c.client.Transport = rt
	}
}

type httpClient struct {
	client          *http.Client
	breakerFailures uint32
	breakerTimeout  time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewHTTPClient 基于 net/http 的默认实现，按 host 熔断
func NewHTTPClient(opts ...HTTPOption) HTTPClient {
	c := &httpClient{
		client:          &http.Client{Timeout: 10 * time.Second},
		breakerFailures: 5,
		breakerTimeout:  30 * time.Second,
		breakers:        make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) breaker(host string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[host]; ok {
		return cb
	}
	failures := c.breakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     c.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn(context.Background(), "resolver http breaker state changed",
				log.String("host", name), log.String("from", from.String()), log.String("to", to.String()))
		},
	})
	c.breakers[host] = cb
	return cb
}

type httpResult struct {
	status int
	body   []byte
}

func (c *httpClient) Get(ctx context.Context, rawURL string, headers map[string]string) (int, []byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, nil, err
	}

	res, err := c.breaker(u.Host).Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
		if err != nil {
			return nil, err
		}
		result := &httpResult{status: resp.StatusCode, body: body}
		if resp.StatusCode >= http.StatusInternalServerError {
			return result, fmt.Errorf("server error: %d", resp.StatusCode)
		}
		return result, nil
	})
	if res != nil {
		r := res.(*httpResult)
		return r.status, r.body, err
	}
	return 0, nil, err
}

// FetchPage GET 房间页并校验状态码，供各平台 Resolver 复用
func FetchPage(ctx context.Context, client HTTPClient, pageURL string, headers map[string]string) ([]byte, error) {
	status, body, err := client.Get(ctx, pageURL, headers)
	if err != nil {
		return nil, xerr.ErrResolveFailed.Wrapf(err, "GET "+pageURL)
	}
	if status != http.StatusOK {
		return nil, xerr.ErrResolveFailed.Wrapf(nil, fmt.Sprintf("GET %s: status %d", pageURL, status))
	}
	return body, nil
}

// ExtractInt64 取正则第一个分组并解析为整数，未匹配或非法时为 0
func ExtractInt64(re *regexp.Regexp, body []byte) int64 {
	m := re.FindSubmatch(body)
	if len(m) < 2 {
		return 0
	}
	v, err := strconv.ParseInt(string(m[1]), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
